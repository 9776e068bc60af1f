package relay

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"enclave/internal/domain"
)

// Config holds relay server options.
type Config struct {
	Addr            string        // listen address, e.g. :3001
	DefaultRoom     domain.RoomID // room for joins that name none
	AllowedOrigins  []string      // websocket origins; empty allows all
	WriteTimeout    time.Duration // per-frame write deadline
	MaxMessageBytes int64         // read limit per frame
	Logger          logrus.FieldLogger
}

// DefaultConfig returns the settings the relay binary starts from.
func DefaultConfig() Config {
	return Config{
		Addr:            ":3001",
		DefaultRoom:     domain.DefaultRoom,
		WriteTimeout:    10 * time.Second,
		MaxMessageBytes: 1 << 20,
	}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("relay: listen address required")
	}
	if c.DefaultRoom == "" {
		return errors.New("relay: default room required")
	}
	if c.MaxMessageBytes <= 0 {
		return errors.New("relay: max message size must be positive")
	}
	if c.WriteTimeout < 0 {
		return errors.New("relay: write timeout must not be negative")
	}
	return nil
}
