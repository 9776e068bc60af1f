package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"enclave/internal/domain"
)

// Config holds runtime wiring options for building the client.
type Config struct {
	Home       string // config directory, e.g. $HOME/.enclave
	RelayURL   string // relay websocket URL, e.g. ws://127.0.0.1:3001/ws
	Username   domain.Username
	Room       domain.RoomID // empty joins the relay's default room
	Passphrase string        // seals the known-keys book when set
	Ephemeral  bool          // keep the known-keys book in memory only
	ICEServers []string      // STUN/TURN servers for calls
	Logger     logrus.FieldLogger
	Dialer     *websocket.Dialer // optional; defaults to websocket.DefaultDialer
}

// DefaultConfig returns a config pointing at a local relay.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Home:       filepath.Join(home, ".enclave"),
		RelayURL:   "ws://127.0.0.1:3001/ws",
		ICEServers: []string{"stun:stun.l.google.com:19302"},
	}
}

// Validate checks the fields NewWire needs.
func (c Config) Validate() error {
	if c.RelayURL == "" {
		return errors.New("relay URL required")
	}
	if c.Username == "" {
		return errors.New("username required")
	}
	if utf8.RuneCountInString(string(c.Username)) > domain.MaxUsernameLen {
		return fmt.Errorf("username longer than %d characters", domain.MaxUsernameLen)
	}
	if len(c.Room) > domain.MaxRoomLen {
		return fmt.Errorf("room id longer than %d bytes", domain.MaxRoomLen)
	}
	if !c.Ephemeral && c.Home == "" {
		return errors.New("home directory required")
	}
	return nil
}
