package services

import "math/rand"

// Join codes are short enough to type from another screen; the
// alphabet drops visually confusable characters (0/O, 1/I/L).
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 5
)

// generateCode issues a code unused by any currently live room. The
// caller must hold the manager lock; generation is a synchronous retry
// loop, so two rooms can never race to the same code. Codes are
// recycled once their room is destroyed.
func (manager *GameManager) generateCode() string {
	buffer := make([]byte, codeLength)

	for {
		for i := range buffer {
			buffer[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}

		code := string(buffer)

		if _, taken := manager.rooms[code]; !taken {
			return code
		}
	}
}
