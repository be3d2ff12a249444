// Package config loads export settings from a TOML file with OXY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
)

// Config is the complete export configuration.
type Config struct {
	Backend       string   `toml:"backend"`
	Width         int      `toml:"width"`
	Height        int      `toml:"height"`
	Format        string   `toml:"format"`
	PixelType     string   `toml:"pixel_type"`
	Start         int      `toml:"start"`
	End           int      `toml:"end"`
	RenderTimeout Duration `toml:"render_timeout"`
	Profile       bool     `toml:"profile"`

	Output OutputConfig `toml:"output"`
	MinIO  MinIOConfig  `toml:"minio"`
}

// OutputConfig controls local files.
type OutputConfig struct {
	Dir          string `toml:"dir"`
	Pattern      string `toml:"pattern"`
	Preview      bool   `toml:"preview"`
	PreviewDir   string `toml:"preview_dir"`
	PreviewWidth int    `toml:"preview_width"`
}

// MinIOConfig controls uploads to an S3-compatible object store.
type MinIOConfig struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
}

// Duration is a time.Duration written as a Go duration string, e.g. "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file or environment overrides are given.
func Default() Config {
	return Config{
		Backend:       "mapped",
		Width:         1920,
		Height:        1080,
		Format:        common.PixelFormatRGBA16Float.String(),
		PixelType:     exr.PixelTypeHalf.String(),
		Start:         0,
		End:           0,
		RenderTimeout: Duration{10 * time.Second},
		Output: OutputConfig{
			Dir:          "frames",
			Pattern:      "frame_%04d.exr",
			PreviewDir:   "frames/preview",
			PreviewWidth: 256,
		},
		MinIO: MinIOConfig{
			Endpoint: "localhost:9000",
			Region:   "us-east-1",
			Bucket:   "renders",
			Prefix:   "exports",
		},
	}
}

// Read reads path on top of the defaults and applies OXY_* environment overrides without validating.
// Callers that layer further overrides on the result call Validate once they are done.
// An empty path skips the file.
//
// Parameters:
//   - path: the TOML file, or ""
//
// Returns:
//   - Config: the unvalidated configuration
//   - error: an error for unreadable files, unknown keys or bad overrides
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is Read followed by Validate.
//
// Parameters:
//   - path: the TOML file, or ""
//
// Returns:
//   - Config: the validated configuration
//   - error: an error for unreadable files, unknown keys, bad overrides or invalid values
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode merges TOML data into c and rejects keys it does not know.
func (c *Config) decode(data []byte) error {
	meta, err := toml.Decode(string(data), c)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// applyEnv overrides fields from OXY_* variables.
func (c *Config) applyEnv() error {
	var err error
	c.Backend = envString("OXY_BACKEND", c.Backend)
	c.Format = envString("OXY_FORMAT", c.Format)
	c.PixelType = envString("OXY_PIXEL_TYPE", c.PixelType)
	c.Output.Dir = envString("OXY_OUTPUT_DIR", c.Output.Dir)
	c.Output.Pattern = envString("OXY_OUTPUT_PATTERN", c.Output.Pattern)
	c.MinIO.Endpoint = envString("OXY_MINIO_ENDPOINT", c.MinIO.Endpoint)
	c.MinIO.AccessKey = envString("OXY_MINIO_ACCESS_KEY", c.MinIO.AccessKey)
	c.MinIO.SecretKey = envString("OXY_MINIO_SECRET_KEY", c.MinIO.SecretKey)
	c.MinIO.Region = envString("OXY_MINIO_REGION", c.MinIO.Region)
	c.MinIO.Bucket = envString("OXY_MINIO_BUCKET", c.MinIO.Bucket)
	c.MinIO.Prefix = envString("OXY_MINIO_PREFIX", c.MinIO.Prefix)

	if c.Width, err = envInt("OXY_WIDTH", c.Width); err != nil {
		return err
	}
	if c.Height, err = envInt("OXY_HEIGHT", c.Height); err != nil {
		return err
	}
	if c.Start, err = envInt("OXY_START", c.Start); err != nil {
		return err
	}
	if c.End, err = envInt("OXY_END", c.End); err != nil {
		return err
	}
	if c.RenderTimeout.Duration, err = envDuration("OXY_RENDER_TIMEOUT", c.RenderTimeout.Duration); err != nil {
		return err
	}
	if c.Profile, err = envBool("OXY_PROFILE", c.Profile); err != nil {
		return err
	}
	if c.Output.Preview, err = envBool("OXY_OUTPUT_PREVIEW", c.Output.Preview); err != nil {
		return err
	}
	if c.MinIO.Enabled, err = envBool("OXY_MINIO_ENABLED", c.MinIO.Enabled); err != nil {
		return err
	}
	if c.MinIO.UseSSL, err = envBool("OXY_MINIO_USE_SSL", c.MinIO.UseSSL); err != nil {
		return err
	}
	return nil
}

// Validate checks every field that can be checked without a device.
func (c Config) Validate() error {
	if _, err := c.BackendKind(); err != nil {
		return err
	}
	format, err := c.PixelFormat()
	if err != nil {
		return err
	}
	if !format.IsFloat() {
		return fmt.Errorf("format %s is not a float format", format)
	}
	if _, err := c.EXRPixelType(); err != nil {
		return err
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("resolution %dx%d must be positive", c.Width, c.Height)
	}
	if c.End < c.Start {
		return fmt.Errorf("frame range %d..%d is empty", c.Start, c.End)
	}
	if c.RenderTimeout.Duration <= 0 {
		return errors.New("render_timeout must be positive")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return errors.New("output dir is required")
	}
	if !strings.Contains(c.Output.Pattern, "%") {
		return fmt.Errorf("output pattern %q has no frame number verb", c.Output.Pattern)
	}
	if c.MinIO.Enabled {
		if err := c.MinIO.Validate(); err != nil {
			return fmt.Errorf("minio: %w", err)
		}
	}
	return nil
}

// Validate checks the object store settings.
func (c MinIOConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// BackendKind parses the backend name.
func (c Config) BackendKind() (common.BackendKind, error) {
	return gpu.ParseBackendKind(c.Backend)
}

// PixelFormat parses the frame target format name.
func (c Config) PixelFormat() (common.PixelFormat, error) {
	return common.ParsePixelFormat(c.Format)
}

// EXRPixelType parses the EXR sample type name.
func (c Config) EXRPixelType() (exr.PixelType, error) {
	switch c.PixelType {
	case exr.PixelTypeHalf.String():
		return exr.PixelTypeHalf, nil
	case exr.PixelTypeFloat.String():
		return exr.PixelTypeFloat, nil
	default:
		return 0, fmt.Errorf("unknown pixel type %q", c.PixelType)
	}
}
