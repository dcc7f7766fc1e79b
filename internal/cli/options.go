package cli

import (
	"os"
	"time"
)

// Environment fallbacks for the well-known endpoints. Flags win over
// environment, environment wins over the built-in defaults.
const (
	EnvEventSocket = "SM_EVENT_SOCKET"
	EnvControlDir  = "SM_CONTROL_DIR"
	EnvRelayAddr   = "SM_RELAY_ADDR"
	EnvAPIAddr     = "SM_API_ADDR"
)

// envOr resolves one setting from flag value, environment, then default.
func envOr(flagValue, envKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}

// RelayOptions configures the relay command.
type RelayOptions struct {
	SocketPath string
	ListenAddr string
	APIAddr    string
	QueueDepth int
	Debug      bool
}

// WorkerOptions configures the run command.
type WorkerOptions struct {
	DefinitionPath string
	SocketPath     string
	ControlDir     string
	Debug          bool
}

// MonitorOptions configures the monitor command.
type MonitorOptions struct {
	Addr     string
	Machine  string
	Output   string // json | pretty | auto
	Duration time.Duration
	Debug    bool
}

// SendOptions configures the send command.
type SendOptions struct {
	Machine    string
	ControlDir string
	Command    string
	Type       string
	PayloadRaw string // JSON object
	Timeout    time.Duration
	Debug      bool
}
