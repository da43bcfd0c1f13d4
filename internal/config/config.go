package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.moim/config.toml.
type Config struct {
	DefaultAccount string `toml:"default_account"`
	Server         Server `toml:"server"`
	Auth           Auth   `toml:"auth"`
	Poll           Poll   `toml:"poll"`
	Push           Push   `toml:"push"`
}

// Server holds backend endpoints.
type Server struct {
	BaseURL string `toml:"base_url"`
	WSURL   string `toml:"ws_url"`
}

// Auth holds the login credentials for the account.
type Auth struct {
	UserID   string `toml:"user_id"`
	Password string `toml:"password"`
}

// Poll holds the poll intervals in seconds. Zero values fall back to the
// defaults the backend's session policy expects.
type Poll struct {
	PresenceSeconds      int `toml:"presence_seconds"`
	FriendsSeconds       int `toml:"friends_seconds"`
	NotificationsSeconds int `toml:"notifications_seconds"`
	HeartbeatSeconds     int `toml:"heartbeat_seconds"`
}

// Push holds push connection tuning.
type Push struct {
	ReconnectSeconds int `toml:"reconnect_seconds"`
}

// Default intervals. Heartbeat must stay under the backend's 5 minute
// online-status expiry.
const (
	DefaultPresenceInterval      = 10 * time.Second
	DefaultFriendsInterval       = 10 * time.Second
	DefaultNotificationsInterval = 30 * time.Second
	DefaultHeartbeatInterval     = 2 * time.Minute
	DefaultReconnectDelay        = 5 * time.Second
)

func interval(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// PresenceInterval returns the presence poll interval.
func (c *Config) PresenceInterval() time.Duration {
	return interval(c.Poll.PresenceSeconds, DefaultPresenceInterval)
}

// FriendsInterval returns the friend poll interval.
func (c *Config) FriendsInterval() time.Duration {
	return interval(c.Poll.FriendsSeconds, DefaultFriendsInterval)
}

// NotificationsInterval returns the notification poll interval.
func (c *Config) NotificationsInterval() time.Duration {
	return interval(c.Poll.NotificationsSeconds, DefaultNotificationsInterval)
}

// HeartbeatInterval returns the heartbeat interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return interval(c.Poll.HeartbeatSeconds, DefaultHeartbeatInterval)
}

// ReconnectDelay returns the websocket reconnect delay.
func (c *Config) ReconnectDelay() time.Duration {
	return interval(c.Push.ReconnectSeconds, DefaultReconnectDelay)
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
