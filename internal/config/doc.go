// Package config provides environment-based configuration.
//
// Loads from .env file (godotenv), maps to Config struct via go-simpler/env
// struct tags. REDIS_URL is deliberately optional: without it the service
// degrades to single-instance delivery instead of failing to start.
package config
