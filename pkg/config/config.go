package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// Config holds the configuration for the lithophane client
type Config struct {
	Endpoint            string                     `yaml:"endpoint"`
	Parameters          types.SubmissionParameters `yaml:"parameters"`
	ArtifactsRoot       string                     `yaml:"artifacts_root"`
	ArtifactFilename    string                     `yaml:"artifact_filename"`
	ArtifactContentType string                     `yaml:"artifact_content_type"`
	MaxArtifactSizeMB   int                        `yaml:"max_artifact_size_mb"`
	MissingFilePolicy   string                     `yaml:"missing_file_policy"`
	InFlightPolicy      string                     `yaml:"inflight_policy"`
	WebAddr             string                     `yaml:"web_addr"`
	MetricsNamespace    string                     `yaml:"metrics_namespace"`
	DebugMode           bool                       `yaml:"debug"`

	Timeouts TimeoutConfig `yaml:"-"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Endpoint: types.DefaultEndpoint,
		Parameters: types.SubmissionParameters{
			Brightness: types.DefaultBrightness,
		},
		ArtifactsRoot:       filepath.Join(os.TempDir(), "lithophane_artifacts"),
		ArtifactFilename:    types.DefaultArtifactFilename,
		ArtifactContentType: types.DefaultArtifactContentType,
		MaxArtifactSizeMB:   256,
		MissingFilePolicy:   types.MissingFileReject,
		InFlightPolicy:      types.InFlightSupersede,
		WebAddr:             ":8080",
		MetricsNamespace:    "lithophane",
		Timeouts:            DefaultTimeouts(),
	}
}

// LoadConfig loads configuration from an optional .env file, an optional YAML
// file named by LITHOPHANE_CONFIG and finally environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("LITHOPHANE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Timeouts = LoadTimeouts()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LITHOPHANE_ENDPOINT"); v != "" {
		c.Endpoint = v
	}

	if v := os.Getenv("LITHOPHANE_BRIGHTNESS"); v != "" {
		val, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid LITHOPHANE_BRIGHTNESS: %w", err)
		}
		c.Parameters.Brightness = val
	}

	if v := os.Getenv("LITHOPHANE_ARTIFACTS_ROOT"); v != "" {
		c.ArtifactsRoot = v
	}
	if v := os.Getenv("LITHOPHANE_ARTIFACT_FILENAME"); v != "" {
		c.ArtifactFilename = v
	}
	if v := os.Getenv("LITHOPHANE_ARTIFACT_CONTENT_TYPE"); v != "" {
		c.ArtifactContentType = v
	}

	if v := os.Getenv("LITHOPHANE_MAX_ARTIFACT_SIZE_MB"); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LITHOPHANE_MAX_ARTIFACT_SIZE_MB: %w", err)
		}
		c.MaxArtifactSizeMB = val
	}

	if v := os.Getenv("LITHOPHANE_MISSING_FILE_POLICY"); v != "" {
		c.MissingFilePolicy = v
	}
	if v := os.Getenv("LITHOPHANE_INFLIGHT_POLICY"); v != "" {
		c.InFlightPolicy = v
	}
	if v := os.Getenv("LITHOPHANE_WEB_ADDR"); v != "" {
		c.WebAddr = v
	}

	if v := os.Getenv("DEBUG_MODE"); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG_MODE: %w", err)
		}
		c.DebugMode = val
	}

	return nil
}

// MaxArtifactSize returns the response size limit in bytes, 0 for unlimited
func (c *Config) MaxArtifactSize() int64 {
	return int64(c.MaxArtifactSizeMB) * 1024 * 1024
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint must be an http(s) URL, got %q", c.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint host is required")
	}

	if err := c.Parameters.Validate(); err != nil {
		return err
	}

	if c.ArtifactFilename == "" {
		return fmt.Errorf("artifact filename is required")
	}
	if filepath.Base(c.ArtifactFilename) != c.ArtifactFilename {
		return fmt.Errorf("artifact filename must not contain a path: %q", c.ArtifactFilename)
	}
	if c.ArtifactContentType == "" {
		return fmt.Errorf("artifact content type is required")
	}
	if c.MaxArtifactSizeMB < 0 {
		return fmt.Errorf("max artifact size must not be negative")
	}

	switch c.MissingFilePolicy {
	case types.MissingFileReject, types.MissingFileAllow:
	default:
		return fmt.Errorf("unknown missing file policy %q", c.MissingFilePolicy)
	}

	switch c.InFlightPolicy {
	case types.InFlightSupersede, types.InFlightReject, types.InFlightJoin:
	default:
		return fmt.Errorf("unknown in-flight policy %q", c.InFlightPolicy)
	}

	if err := c.Timeouts.Validate(); err != nil {
		return err
	}

	// Create artifacts root folder if it doesn't exist
	if err := os.MkdirAll(c.ArtifactsRoot, 0755); err != nil {
		return fmt.Errorf("failed to create artifacts root folder: %w", err)
	}

	return nil
}
