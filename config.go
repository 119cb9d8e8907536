package bastion

// Config holds configuration for the Bastion engine.
type Config struct {
	// MaxElevationHours bounds the duration of elevation requests and
	// approvals. Defaults to 720 (30 days).
	MaxElevationHours int `json:"max_elevation_hours,omitempty" yaml:"max_elevation_hours"`

	// ElevationRequestsPerHour caps how many access requests one user may
	// file per organization per hour. Zero means unlimited.
	ElevationRequestsPerHour int `json:"elevation_requests_per_hour,omitempty" yaml:"elevation_requests_per_hour"`

	// SingleValuedAttributes rejects list-valued request attributes instead
	// of requiring every listed value to be allowed.
	SingleValuedAttributes bool `json:"single_valued_attributes,omitempty" yaml:"single_valued_attributes"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxElevationHours: 720,
	}
}

func (c Config) maxElevationHours() int {
	if c.MaxElevationHours <= 0 {
		return 720
	}
	return c.MaxElevationHours
}
