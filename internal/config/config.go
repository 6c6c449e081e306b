// Package config reads the bot's settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	SocketEndpoint string `env:"SOCKET_ENDPOINT" envDefault:"localhost"`
	SocketPort     int    `env:"SOCKET_PORT" envDefault:"0"`
	ServerEndpoint string `env:"SERVER_ENDPOINT" envDefault:"http://localhost:8080"`

	// TimeoutSeconds is the inactivity timeout of a match session.
	TimeoutSeconds        int           `env:"TIMEOUT" envDefault:"60"`
	OpenTimeout           time.Duration `env:"OPEN_TIMEOUT" envDefault:"10s"`
	TeardownGrace         time.Duration `env:"TEARDOWN_GRACE" envDefault:"20s"`
	ChannelDeleteInterval time.Duration `env:"CHANNEL_DELETE_INTERVAL" envDefault:"1s"`

	DiscordToken  string `env:"DISCORD_TOKEN"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!blackjack"`
	CategoryName  string `env:"CATEGORY_NAME" envDefault:"All-Burst-Category"`

	Locale         string `env:"LOCALE" envDefault:"en-US"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBDSN    string `env:"DB_DSN" envDefault:"burstbot.db"`

	CommandRate   int           `env:"COMMAND_RATE" envDefault:"5"`
	CommandWindow time.Duration `env:"COMMAND_WINDOW" envDefault:"3s"`
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SocketEndpoint) == "" {
		errs = append(errs, errors.New("SOCKET_ENDPOINT is required"))
	}
	if c.SocketPort < 0 || c.SocketPort > 65535 {
		errs = append(errs, fmt.Errorf("SOCKET_PORT %d is out of range", c.SocketPort))
	}
	if c.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("TIMEOUT must be positive"))
	}
	if c.OpenTimeout <= 0 {
		errs = append(errs, errors.New("OPEN_TIMEOUT must be positive"))
	}
	if c.CommandRate <= 0 || c.CommandWindow <= 0 {
		errs = append(errs, errors.New("COMMAND_RATE and COMMAND_WINDOW must be positive"))
	}
	if _, err := url.Parse(c.ServerEndpoint); err != nil {
		errs = append(errs, fmt.Errorf("SERVER_ENDPOINT: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) InactivityTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SocketURL is the backend connection target. Without a port the endpoint
// is reached over TLS.
func (c Config) SocketURL() string {
	endpoint := strings.TrimSuffix(c.SocketEndpoint, "/")
	if c.SocketPort == 0 {
		return "wss://" + endpoint
	}
	host, path, _ := strings.Cut(endpoint, "/")
	u := "ws://" + net.JoinHostPort(host, strconv.Itoa(c.SocketPort))
	if path != "" {
		u += "/" + path
	}
	return u
}
