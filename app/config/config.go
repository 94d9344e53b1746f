package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/curfew/access"
	gtypes "go.hackfix.me/curfew/gateway/types"
)

// Config represents the application configuration, backed by a filesystem for
// persistence.
type Config struct {
	Gateway  Gateway
	Server   Server
	Schedule Schedule

	fs   vfs.FileSystem
	path string
}

// NewConfig creates a new Config instance with the specified filesystem
// and configuration file path.
func NewConfig(fs vfs.FileSystem, path string) *Config {
	return &Config{fs: fs, path: path}
}

// Load reads and parses the configuration file from the filesystem.
// If the file doesn't exist, it initializes with an empty configuration.
func (c *Config) Load() error {
	configJSON, err := vfs.ReadFile(c.fs, c.path)
	if err != nil && !vfs.IsErrNotExist(err) {
		return fmt.Errorf("failed reading configuration file: %w", err)
	}

	// Ensure that unmarshalling JSON doesn't fail if the file doesn't exist or is empty.
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}

	if err = json.Unmarshal(configJSON, c); err != nil {
		return fmt.Errorf("failed parsing configuration file: %w", err)
	}

	return nil
}

// Path returns the filesystem path where the configuration is stored.
func (c *Config) Path() string {
	return c.path
}

// Save writes the current configuration to the filesystem as JSON. The file
// may contain the router password, so it's only readable by the owner.
func (c *Config) Save() error {
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed creating configuration directory: %w", err)
	}
	configJSON, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed serializing configuration data: %w", err)
	}
	if err = vfs.WriteFile(c.fs, c.path, configJSON, 0o600); err != nil {
		return fmt.Errorf("failed writing configuration file: %w", err)
	}

	return nil
}

// Gateway defines how to reach the router.
type Gateway struct {
	// Type is the gateway implementation.
	Type sql.Null[gtypes.GatewayType] `json:"type"`
	// Address is the router's REST API URL or host[:port]. HTTPS is assumed if
	// no scheme is given.
	Address  sql.Null[string] `json:"address"`
	Username sql.Null[string] `json:"username"`
	Password sql.Null[string] `json:"password"`
	// Timeout is the maximum duration of a single router call.
	Timeout sql.Null[time.Duration] `json:"timeout"`
	// InsecureSkipVerify disables verification of the router's TLS
	// certificate. Routers use self-signed certificates by default.
	InsecureSkipVerify sql.Null[bool] `json:"insecure_skip_verify"`
}

// Server defines configuration options specific to the HTTP server.
type Server struct {
	// Address is the network address in [host]:port format the server will listen on.
	Address sql.Null[string] `json:"address"`
}

// Schedule defines how windows are created on the router.
type Schedule struct {
	// SaltTags makes the tag of each window unique to the time it was created.
	SaltTags sql.Null[bool] `json:"salt_tags"`
	// Policy is the set of permissions scheduled tasks run with.
	Policy sql.Null[string] `json:"policy"`
}

type cfgWrapper struct {
	Gateway  gwCfgWrapper    `json:"gateway"`
	Server   srvCfgWrapper   `json:"server"`
	Schedule schedCfgWrapper `json:"schedule"`
}
type gwCfgWrapper struct {
	Type               string `json:"type,omitempty"`
	Address            string `json:"address,omitempty"`
	Username           string `json:"username,omitempty"`
	Password           string `json:"password,omitempty"`
	Timeout            string `json:"timeout,omitempty"`
	InsecureSkipVerify *bool  `json:"insecure_skip_verify,omitempty"`
}
type srvCfgWrapper struct {
	Address string `json:"address,omitempty"`
}
type schedCfgWrapper struct {
	SaltTags *bool  `json:"salt_tags,omitempty"`
	Policy   string `json:"policy,omitempty"`
}

// MarshalJSON implements custom JSON marshaling to convert sql.Null values
// to their underlying types, omitting invalid/null fields from the output.
func (c Config) MarshalJSON() ([]byte, error) {
	w := cfgWrapper{}

	if c.Gateway.Type.Valid {
		w.Gateway.Type = string(c.Gateway.Type.V)
	}
	if c.Gateway.Address.Valid {
		w.Gateway.Address = c.Gateway.Address.V
	}
	if c.Gateway.Username.Valid {
		w.Gateway.Username = c.Gateway.Username.V
	}
	if c.Gateway.Password.Valid {
		w.Gateway.Password = c.Gateway.Password.V
	}
	if c.Gateway.Timeout.Valid {
		w.Gateway.Timeout = c.Gateway.Timeout.V.String()
	}
	if c.Gateway.InsecureSkipVerify.Valid {
		w.Gateway.InsecureSkipVerify = &c.Gateway.InsecureSkipVerify.V
	}

	if c.Server.Address.Valid {
		w.Server.Address = c.Server.Address.V
	}

	if c.Schedule.SaltTags.Valid {
		w.Schedule.SaltTags = &c.Schedule.SaltTags.V
	}
	if c.Schedule.Policy.Valid {
		w.Schedule.Policy = c.Schedule.Policy.V
	}

	//nolint:wrapcheck // This is fine.
	return json.Marshal(w)
}

// UnmarshalJSON implements custom JSON unmarshaling to convert plain values
// into sql.Null types and parse duration strings into time.Duration values.
func (c *Config) UnmarshalJSON(data []byte) error {
	var w cfgWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	if w.Gateway.Type != "" {
		gt, err := gtypes.GatewayTypeFromString(w.Gateway.Type)
		if err != nil {
			return err
		}
		c.Gateway.Type = sql.Null[gtypes.GatewayType]{V: gt, Valid: true}
	}
	if w.Gateway.Address != "" {
		c.Gateway.Address = sql.Null[string]{V: w.Gateway.Address, Valid: true}
	}
	if w.Gateway.Username != "" {
		c.Gateway.Username = sql.Null[string]{V: w.Gateway.Username, Valid: true}
	}
	if w.Gateway.Password != "" {
		c.Gateway.Password = sql.Null[string]{V: w.Gateway.Password, Valid: true}
	}
	if w.Gateway.Timeout != "" {
		dur, err := time.ParseDuration(w.Gateway.Timeout)
		if err != nil {
			return fmt.Errorf("failed parsing gateway timeout: %w", err)
		}
		if dur <= 0 {
			return fmt.Errorf("invalid gateway timeout '%s': must be positive", w.Gateway.Timeout)
		}
		c.Gateway.Timeout = sql.Null[time.Duration]{V: dur, Valid: true}
	}
	if w.Gateway.InsecureSkipVerify != nil {
		c.Gateway.InsecureSkipVerify = sql.Null[bool]{V: *w.Gateway.InsecureSkipVerify, Valid: true}
	}

	if w.Server.Address != "" {
		c.Server.Address = sql.Null[string]{V: w.Server.Address, Valid: true}
	}

	if w.Schedule.SaltTags != nil {
		c.Schedule.SaltTags = sql.Null[bool]{V: *w.Schedule.SaltTags, Valid: true}
	}
	if w.Schedule.Policy != "" {
		c.Schedule.Policy = sql.Null[string]{V: w.Schedule.Policy, Valid: true}
	}

	return nil
}

// SetDefaults sets default configuration values if they weren't set already.
func (c *Config) SetDefaults() {
	if !c.Gateway.Type.Valid {
		c.Gateway.Type = sql.Null[gtypes.GatewayType]{V: gtypes.GatewayREST, Valid: true}
	}
	if !c.Gateway.Timeout.Valid {
		c.Gateway.Timeout = sql.Null[time.Duration]{V: 10 * time.Second, Valid: true}
	}
	if !c.Gateway.InsecureSkipVerify.Valid {
		c.Gateway.InsecureSkipVerify = sql.Null[bool]{V: false, Valid: true}
	}
	if !c.Server.Address.Valid {
		c.Server.Address = sql.Null[string]{V: ":8080", Valid: true}
	}
	if !c.Schedule.SaltTags.Valid {
		c.Schedule.SaltTags = sql.Null[bool]{V: false, Valid: true}
	}
	if !c.Schedule.Policy.Valid {
		c.Schedule.Policy = sql.Null[string]{V: access.DefaultTaskPolicy, Valid: true}
	}
}
