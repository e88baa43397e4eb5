package gameserver

import "time"

// Config contains all configuration options for the game server.
type Config struct {
	ListenAddress string

	// JWTSecret verifies the bearer tokens issued by the auth service.
	JWTSecret string

	// JoinTimeout is how long a created room may sit unbegun before it
	// is destroyed.
	JoinTimeout time.Duration

	// Production switches logging to the JSON production encoder.
	Production bool

	Mongo     MongoConfig
	Publisher PublisherConfig
	Router    RouterConfig
}

// MongoConfig points at the document database holding user accounts.
type MongoConfig struct {
	URI      string
	Database string
}

// PublisherConfig contains configuration for the publisher service.
type PublisherConfig struct {
	Redis RedisConfig
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// RouterConfig contains router configuration.
type RouterConfig struct {
	AllowedOrigins []string
}
