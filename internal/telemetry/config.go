package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// OTLP protocols accepted in Config.Protocol.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config selects the OTLP collector shelld reports to. Nothing is exported
// unless Enabled is set.
type Config struct {
	Enabled  bool
	Endpoint string // host:port, a scheme is tolerated
	Protocol string // ProtocolGRPC or ProtocolHTTP, empty means gRPC
	// Insecure sends plaintext and is refused for non-loopback endpoints.
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	// SampleRate is the fraction of root spans kept. Child spans follow
	// their parent.
	SampleRate      float64
	MetricInterval  time.Duration
	ShutdownTimeout time.Duration
}

// NewDefaultConfig returns a disabled config pointing at a local collector.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		Insecure:        true,
		ServiceName:     "shelld",
		ServiceVersion:  "dev",
		SampleRate:      1,
		MetricInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks an enabled config. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Endpoint == "":
		return errors.New("endpoint is required when telemetry is enabled")
	case c.ServiceName == "":
		return errors.New("service name is required when telemetry is enabled")
	case c.Protocol != "" && c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP:
		return fmt.Errorf("protocol must be %s or %s, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	case c.SampleRate < 0 || c.SampleRate > 1:
		return fmt.Errorf("sample rate must be between 0 and 1, got %g", c.SampleRate)
	case c.MetricInterval <= 0:
		return errors.New("metric interval must be positive")
	case c.Insecure && !isLoopback(c.Endpoint):
		return fmt.Errorf("insecure connections to remote endpoint %s are not allowed; disable insecure or use a loopback collector", c.Endpoint)
	}
	return nil
}

// isLoopback reports whether endpoint names this machine.
func isLoopback(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes an http:// or https:// prefix; exporters want host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
