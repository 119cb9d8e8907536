package extension

import (
	"time"

	"github.com/xraph/bastion"
)

// Config holds the Bastion extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bastion" or "bastion" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for bastion routes (default: "/bastion").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// RoleTableFile is a YAML file holding the built-in role table. It is
	// loaded at registration and overrides any table passed as an engine
	// option.
	RoleTableFile string `json:"role_table_file" mapstructure:"role_table_file" yaml:"role_table_file"`

	// MaxElevationHours bounds elevation request and approval durations.
	MaxElevationHours int `json:"max_elevation_hours" mapstructure:"max_elevation_hours" yaml:"max_elevation_hours"`

	// ElevationRequestsPerHour caps access requests per user per hour.
	// Zero means unlimited.
	ElevationRequestsPerHour int `json:"elevation_requests_per_hour" mapstructure:"elevation_requests_per_hour" yaml:"elevation_requests_per_hour"`

	// SingleValuedAttributes rejects list-valued request attributes.
	SingleValuedAttributes bool `json:"single_valued_attributes" mapstructure:"single_valued_attributes" yaml:"single_valued_attributes"`

	// GrantPurgeInterval is how often expired grants are deleted in the
	// background. Zero disables the purger.
	GrantPurgeInterval time.Duration `json:"grant_purge_interval" mapstructure:"grant_purge_interval" yaml:"grant_purge_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:          "/bastion",
		MaxElevationHours: 720,
	}
}

// engineConfig projects the extension settings onto the engine config.
func (c Config) engineConfig() bastion.Config {
	return bastion.Config{
		MaxElevationHours:        c.MaxElevationHours,
		ElevationRequestsPerHour: c.ElevationRequestsPerHour,
		SingleValuedAttributes:   c.SingleValuedAttributes,
	}
}
