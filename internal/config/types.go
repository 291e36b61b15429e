package config

// Config is the root configuration for ConvergsAI.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	Backend BackendConfig `yaml:"backend,omitempty"`
	LiveKit LiveKitConfig `yaml:"livekit,omitempty"`
	Call    CallConfig    `yaml:"call,omitempty"`
	Archive ArchiveConfig `yaml:"archive,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Hooks   HooksConfig   `yaml:"hooks,omitempty"`
}

// GatewayConfig controls the gateway HTTP server.
type GatewayConfig struct {
	Port             int             `yaml:"port,omitempty"`
	Bind             string          `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost   string          `yaml:"customBindHost,omitempty"`
	TLS              GatewayTLS      `yaml:"tls,omitempty"`
	AllowedOrigins   []string        `yaml:"allowedOrigins,omitempty"`
	MaxMessageLength int             `yaml:"maxMessageLength,omitempty"`
	RateLimit        RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// RateLimitConfig bounds per-client request rates on the session and token routes.
// A zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps,omitempty"`
	Burst int     `yaml:"burst,omitempty"`
}

// BackendConfig points at the AI backend service.
type BackendConfig struct {
	URL            string `yaml:"url,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// LiveKitConfig holds the realtime room service credentials.
type LiveKitConfig struct {
	URL             string `yaml:"url,omitempty"`
	APIKey          string `yaml:"apiKey,omitempty"`
	APISecret       string `yaml:"apiSecret,omitempty"`
	TokenTTLMinutes int    `yaml:"tokenTTLMinutes,omitempty"`
}

// CallConfig configures the call client.
type CallConfig struct {
	GatewayURL      string `yaml:"gatewayUrl,omitempty"`
	Transport       string `yaml:"transport,omitempty"` // "livekit" | "websocket"
	Mode            string `yaml:"mode,omitempty"`      // "sales" | "support"
	Persona         string `yaml:"persona,omitempty"`
	Prompt          string `yaml:"prompt,omitempty"`
	InterimWindowMs int    `yaml:"interimWindowMs,omitempty"`
}

// ArchiveConfig controls persistence of finished calls.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"` // defaults to <base>/data/calls.db
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig attaches shell commands to lifecycle events.
type HooksConfig struct {
	CallStarted   []HookEntry `yaml:"callStarted,omitempty"`
	CallConnected []HookEntry `yaml:"callConnected,omitempty"`
	CallEnded     []HookEntry `yaml:"callEnded,omitempty"`
	CallFailed    []HookEntry `yaml:"callFailed,omitempty"`
	GatewayStart  []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop   []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
