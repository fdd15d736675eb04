package config

import "fmt"

// DataStoreConfig configures the HTTP client used by the Logging Emitter to
// reach the remote relational service (spec §4.2, §6 SUPABASE_URL/SUPABASE_KEY).
type DataStoreConfig struct {
	BaseURL string
	APIKey  string

	// Enabled is false when SUPABASE_URL/SUPABASE_KEY are unset, in which
	// case the Logging Emitter no-ops instead of failing every job (spec
	// §7's "DataStore failures are logged and swallowed" extends naturally
	// to "DataStore not configured").
	Enabled bool
}

// LoadDataStoreConfigFromEnv loads DataStoreConfig from SUPABASE_URL and SUPABASE_KEY.
func LoadDataStoreConfigFromEnv() (DataStoreConfig, error) {
	url := getEnvOrDefault("SUPABASE_URL", "")
	key := getEnvOrDefault("SUPABASE_KEY", "")

	if url == "" && key == "" {
		return DataStoreConfig{Enabled: false}, nil
	}
	if url == "" || key == "" {
		return DataStoreConfig{}, fmt.Errorf("both SUPABASE_URL and SUPABASE_KEY must be set (or neither)")
	}

	return DataStoreConfig{BaseURL: url, APIKey: key, Enabled: true}, nil
}
