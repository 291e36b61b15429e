package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid. Missing LiveKit
// credentials are not an issue; the token route reports them per request.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind: custom",
		})
	}

	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	if cfg.Gateway.MaxMessageLength < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.maxMessageLength",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Gateway.MaxMessageLength),
		})
	}

	if cfg.Gateway.RateLimit.RPS < 0 || cfg.Gateway.RateLimit.Burst < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.rateLimit",
			Message: "rps and burst must not be negative",
		})
	}

	// Backend validation
	if issue, ok := checkURL("backend.url", cfg.Backend.URL, "http", "https"); !ok {
		issues = append(issues, issue)
	}
	if cfg.Backend.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "backend.timeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Backend.TimeoutSeconds),
		})
	}

	// LiveKit validation
	if cfg.LiveKit.URL != "" {
		if issue, ok := checkURL("livekit.url", cfg.LiveKit.URL, "ws", "wss", "http", "https"); !ok {
			issues = append(issues, issue)
		}
	}
	if cfg.LiveKit.TokenTTLMinutes < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "livekit.tokenTTLMinutes",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.LiveKit.TokenTTLMinutes),
		})
	}

	// Call validation
	validTransports := []string{TransportLiveKit, TransportWebSocket}
	if cfg.Call.Transport != "" && !slices.Contains(validTransports, cfg.Call.Transport) {
		issues = append(issues, ValidationIssue{
			Path:    "call.transport",
			Message: fmt.Sprintf("must be one of %v, got %q", validTransports, cfg.Call.Transport),
		})
	}
	validModes := []string{"sales", "support"}
	if cfg.Call.Mode != "" && !slices.Contains(validModes, cfg.Call.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "call.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validModes, cfg.Call.Mode),
		})
	}
	if cfg.Call.GatewayURL != "" {
		if issue, ok := checkURL("call.gatewayUrl", cfg.Call.GatewayURL, "http", "https"); !ok {
			issues = append(issues, issue)
		}
	}
	if cfg.Call.InterimWindowMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "call.interimWindowMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Call.InterimWindowMs),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Hook validation
	for name, entries := range map[string][]HookEntry{
		"callStarted":   cfg.Hooks.CallStarted,
		"callConnected": cfg.Hooks.CallConnected,
		"callEnded":     cfg.Hooks.CallEnded,
		"callFailed":    cfg.Hooks.CallFailed,
		"gatewayStart":  cfg.Hooks.GatewayStart,
		"gatewayStop":   cfg.Hooks.GatewayStop,
	} {
		for i, e := range entries {
			if e.Command == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.%s[%d].command", name, i),
					Message: "command is required",
				})
			}
		}
	}

	slices.SortStableFunc(issues, func(a, b ValidationIssue) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return issues
}

func checkURL(path, raw string, schemes ...string) (ValidationIssue, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ValidationIssue{Path: path, Message: fmt.Sprintf("must be an absolute URL, got %q", raw)}, false
	}
	if !slices.Contains(schemes, u.Scheme) {
		return ValidationIssue{Path: path, Message: fmt.Sprintf("scheme must be one of %v, got %q", schemes, u.Scheme)}, false
	}
	return ValidationIssue{}, true
}
