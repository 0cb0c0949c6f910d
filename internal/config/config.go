package config

// Configuration loading and validation for fixtest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
	"github.com/tturner/fixtest/internal/session"
)

// RoleConfig names one side of a FIX conversation.
type RoleConfig struct {
	CompID string `yaml:"comp_id"`
}

// ProtocolConfig describes the wire dialect shared by every connection.
type ProtocolConfig struct {
	Version        string        `yaml:"version"`                   // BeginString, e.g. "FIX.4.2"
	HeaderFields   []int         `yaml:"header_fields,omitempty"`   // encode order for the header
	BinaryFields   []int         `yaml:"binary_fields,omitempty"`   // length tags of length/data pairs
	RequiredFields []int         `yaml:"required_fields,omitempty"` // tags every message must carry
	GroupFields    map[int][]int `yaml:"group_fields,omitempty"`    // count tag to instance template
	MaxLength      int           `yaml:"max_length,omitempty"`      // message size cap in bytes
}

// ConnectionConfig describes one endpoint a test run creates.
type ConnectionConfig struct {
	Name                 string `yaml:"name"`
	Role                 string `yaml:"role"`      // role this endpoint speaks as
	PeerRole             string `yaml:"peer_role"` // role on the other end
	Host                 string `yaml:"host,omitempty"`
	Port                 int    `yaml:"port"`
	ActsAsServer         bool   `yaml:"acts_as_server,omitempty"`
	FilterHeartbeat      *bool  `yaml:"filter_heartbeat,omitempty"`       // default false
	HeartbeatIntervalSec *int   `yaml:"heartbeat_interval_sec,omitempty"` // absent means 30; 0 disables
}

// DefaultsConfig holds run-wide settings.
type DefaultsConfig struct {
	WaitTimeoutSec int    `yaml:"wait_timeout_sec,omitempty"` // wait_for_message deadline
	LogLevel       string `yaml:"log_level,omitempty"`        // "silent","error","info","verbose","debug"
	LogFile        string `yaml:"log_file,omitempty"`
	CaptureFile    string `yaml:"capture_file,omitempty"` // pcap output, empty disables capture
}

// Config is the full test-run configuration.
type Config struct {
	Defaults    DefaultsConfig        `yaml:"defaults,omitempty"`
	Roles       map[string]RoleConfig `yaml:"roles"`
	Protocol    ProtocolConfig        `yaml:"protocol"`
	Connections []ConnectionConfig    `yaml:"connections"`
}

// CreateDefaultConfig returns a two-endpoint loopback configuration.
func CreateDefaultConfig() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			WaitTimeoutSec: 10,
			LogLevel:       "info",
		},
		Roles: map[string]RoleConfig{
			"client": {CompID: "FixClient"},
			"server": {CompID: "FixServer"},
		},
		Protocol: ProtocolConfig{
			Version: "FIX.4.2",
		},
		Connections: []ConnectionConfig{
			{
				Name:     "client-9940",
				Role:     "client",
				PeerRole: "server",
				Host:     "127.0.0.1",
				Port:     9940,
			},
			{
				Name:         "server-9940",
				Role:         "server",
				PeerRole:     "client",
				Port:         9940,
				ActsAsServer: true,
			},
		},
	}
}

// WriteDefaultConfig writes a default configuration to a file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(CreateDefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Load reads a configuration from a YAML file, applies defaults and
// validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError{Path: path, Err: fmt.Errorf("config file not found")}
		}
		return nil, errors.ConfigError{Path: path, Err: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.ConfigError{Path: path, Err: fmt.Errorf("parse YAML: %w", err)}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError{Path: path, Err: err}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Defaults.WaitTimeoutSec == 0 {
		c.Defaults.WaitTimeoutSec = 10
	}
	if c.Defaults.LogLevel == "" {
		c.Defaults.LogLevel = "info"
	}
	if c.Protocol.Version == "" {
		c.Protocol.Version = "FIX.4.2"
	}
	for i := range c.Connections {
		conn := &c.Connections[i]
		if conn.Host == "" {
			conn.Host = "127.0.0.1"
		}
	}
}

// Validate checks cross references and required fields.
func (c *Config) Validate() error {
	if len(c.Roles) == 0 {
		return fmt.Errorf("no roles defined")
	}
	for name, role := range c.Roles {
		if role.CompID == "" {
			return fmt.Errorf("role %s: comp_id is required", name)
		}
	}
	if len(c.Connections) == 0 {
		return fmt.Errorf("no connections defined")
	}

	seen := map[string]bool{}
	for _, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connection without a name")
		}
		if seen[conn.Name] {
			return fmt.Errorf("connection %s: duplicate name", conn.Name)
		}
		seen[conn.Name] = true

		if _, ok := c.Roles[conn.Role]; !ok {
			return fmt.Errorf("connection %s: unknown role %q", conn.Name, conn.Role)
		}
		if _, ok := c.Roles[conn.PeerRole]; !ok {
			return fmt.Errorf("connection %s: unknown peer_role %q", conn.Name, conn.PeerRole)
		}
		if conn.Port <= 0 || conn.Port > 65535 {
			return fmt.Errorf("connection %s: invalid port %d", conn.Name, conn.Port)
		}
	}

	for countTag, template := range c.Protocol.GroupFields {
		if len(template) == 0 {
			return fmt.Errorf("protocol: group %d has an empty template", countTag)
		}
	}
	return nil
}

// WaitTimeout returns the wait_for_message deadline.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Defaults.WaitTimeoutSec) * time.Second
}

// GetRole looks a role up by name.
func (c *Config) GetRole(name string) (RoleConfig, bool) {
	role, ok := c.Roles[name]
	return role, ok
}

// GetConnection looks a connection up by name.
func (c *Config) GetConnection(name string) (ConnectionConfig, bool) {
	for _, conn := range c.Connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionConfig{}, false
}

// ServerConnections returns the connections that listen.
func (c *Config) ServerConnections() []ConnectionConfig {
	var out []ConnectionConfig
	for _, conn := range c.Connections {
		if conn.ActsAsServer {
			out = append(out, conn)
		}
	}
	return out
}

// ClientConnections returns the connections that dial.
func (c *Config) ClientConnections() []ConnectionConfig {
	var out []ConnectionConfig
	for _, conn := range c.Connections {
		if !conn.ActsAsServer {
			out = append(out, conn)
		}
	}
	return out
}

// HeartbeatFiltered reports whether housekeeping messages are hidden
// from this connection's queue. Heartbeats are visible unless the
// connection opts in with filter_heartbeat.
func (conn ConnectionConfig) HeartbeatFiltered() bool {
	if conn.FilterHeartbeat == nil {
		return false
	}
	return *conn.FilterHeartbeat
}

// HeartbeatInterval returns the heartbeat interval for the connection.
// An absent setting means 30 seconds; an explicit 0 disables the
// heartbeat timers entirely.
func (conn ConnectionConfig) HeartbeatInterval() time.Duration {
	if conn.HeartbeatIntervalSec == nil {
		return 30 * time.Second
	}
	return time.Duration(*conn.HeartbeatIntervalSec) * time.Second
}

// Addr returns the host:port the connection dials or listens on.
func (conn ConnectionConfig) Addr() string {
	return fmt.Sprintf("%s:%d", conn.Host, conn.Port)
}

// Dictionary builds the wire dictionary for the configured dialect.
func (c *Config) Dictionary() *fix.Dictionary {
	dict := fix.NewDictionary(c.Protocol.Version)
	if len(c.Protocol.HeaderFields) > 0 {
		dict.HeaderFields = c.Protocol.HeaderFields
	}
	if len(c.Protocol.RequiredFields) > 0 {
		dict.RequiredFields = c.Protocol.RequiredFields
	}
	for _, tag := range c.Protocol.BinaryFields {
		dict.BinaryFields[tag] = true
	}
	for countTag, template := range c.Protocol.GroupFields {
		dict.GroupFields[countTag] = template
	}
	if c.Protocol.MaxLength > 0 {
		dict.MaxLength = c.Protocol.MaxLength
	}
	return dict
}

// SessionConfig builds the session identity for a connection.
func (c *Config) SessionConfig(conn ConnectionConfig) session.Config {
	return session.Config{
		Name:              conn.Name,
		SenderCompID:      c.Roles[conn.Role].CompID,
		TargetCompID:      c.Roles[conn.PeerRole].CompID,
		ProtocolVersion:   c.Protocol.Version,
		HeartbeatInterval: conn.HeartbeatInterval(),
	}
}
