package duel

import "github.com/velvetgames/partyhub/pkg/collision"

// Arena describes one selectable map: immovable wall outlines plus the
// spawn coordinates players are placed on when a battle starts.
type Arena struct {
	Name   string            `json:"name"`
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	Walls  [][]collision.Vec `json:"walls"`
	Spawns []collision.Vec   `json:"spawns"`
}

func border(width, height float64) []collision.Vec {
	return []collision.Vec{
		{X: 0, Y: 0},
		{X: width, Y: 0},
		{X: width, Y: height},
		{X: 0, Y: height},
	}
}

var arenas = []Arena{
	{
		Name:   "crossfire",
		Width:  800,
		Height: 600,
		Walls: [][]collision.Vec{
			border(800, 600),
			{{X: 350, Y: 250}, {X: 450, Y: 250}, {X: 450, Y: 350}, {X: 350, Y: 350}},
		},
		Spawns: []collision.Vec{
			{X: 100, Y: 100},
			{X: 700, Y: 500},
			{X: 100, Y: 500},
			{X: 700, Y: 100},
		},
	},
	{
		Name:   "corridors",
		Width:  800,
		Height: 600,
		Walls: [][]collision.Vec{
			border(800, 600),
			{{X: 200, Y: 0}, {X: 220, Y: 0}, {X: 220, Y: 400}, {X: 200, Y: 400}},
			{{X: 580, Y: 200}, {X: 600, Y: 200}, {X: 600, Y: 600}, {X: 580, Y: 600}},
		},
		Spawns: []collision.Vec{
			{X: 100, Y: 300},
			{X: 700, Y: 300},
			{X: 400, Y: 100},
			{X: 400, Y: 500},
		},
	},
}
