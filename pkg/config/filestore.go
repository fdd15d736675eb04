package config

import "fmt"

// FileStoreConfig configures the on-disk job directory root (spec §4.1, §6 JOBS_DIR).
type FileStoreConfig struct {
	// RootDir is the directory under which one subdirectory per job_id lives.
	RootDir string
}

// LoadFileStoreConfigFromEnv loads FileStoreConfig from JOBS_DIR (default "./jobs").
func LoadFileStoreConfigFromEnv() (FileStoreConfig, error) {
	cfg := FileStoreConfig{
		RootDir: getEnvOrDefault("JOBS_DIR", "./jobs"),
	}
	if err := cfg.Validate(); err != nil {
		return FileStoreConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c FileStoreConfig) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("JOBS_DIR must not be empty")
	}
	return nil
}
