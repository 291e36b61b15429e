package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default values.
const (
	DefaultGatewayPort      = 3001
	DefaultBackendURL       = "http://localhost:8000"
	DefaultBackendTimeout   = 15
	DefaultTokenTTLMinutes  = 360
	DefaultInterimWindowMs  = 3000
	DefaultMaxMessageLength = 1000
	DefaultRateLimitRPS     = 5
	DefaultRateLimitBurst   = 10
)

// Call transports.
const (
	TransportLiveKit   = "livekit"
	TransportWebSocket = "websocket"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port:             DefaultGatewayPort,
			Bind:             "loopback",
			MaxMessageLength: DefaultMaxMessageLength,
			RateLimit: RateLimitConfig{
				RPS:   DefaultRateLimitRPS,
				Burst: DefaultRateLimitBurst,
			},
		},
		Backend: BackendConfig{
			URL:            DefaultBackendURL,
			TimeoutSeconds: DefaultBackendTimeout,
		},
		LiveKit: LiveKitConfig{
			TokenTTLMinutes: DefaultTokenTTLMinutes,
		},
		Call: CallConfig{
			Transport:       TransportLiveKit,
			Mode:            "sales",
			InterimWindowMs: DefaultInterimWindowMs,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// BackendTimeout returns the backend request timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of minted room tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.LiveKit.TokenTTLMinutes) * time.Minute
}

// InterimWindow returns the live transcript inactivity window.
func (c *Config) InterimWindow() time.Duration {
	return time.Duration(c.Call.InterimWindowMs) * time.Millisecond
}

// GatewayURL returns the gateway base URL the call client dials. It falls back
// to the local gateway address when call.gatewayUrl is unset.
func (c *Config) GatewayURL() string {
	if c.Call.GatewayURL != "" {
		return c.Call.GatewayURL
	}
	scheme := "http"
	if c.Gateway.TLS.Enabled {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(c.Gateway.Port))
}
