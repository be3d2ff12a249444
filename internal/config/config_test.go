package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oxy.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	kind, err := cfg.BackendKind()
	require.NoError(t, err)
	assert.Equal(t, common.BackendKindMapped, kind)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
backend = "gl"
width = 640
height = 360
format = "rgba32float"
pixel_type = "float"
start = 10
end = 20
render_timeout = "2500ms"

[output]
dir = "/tmp/shots"
pattern = "shot_%05d.exr"
preview = true

[minio]
enabled = true
access_key = "key"
secret_key = "secret"
bucket = "frames"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 20, cfg.End)
	assert.Equal(t, 2500*time.Millisecond, cfg.RenderTimeout.Duration)
	assert.Equal(t, "shot_%05d.exr", cfg.Output.Pattern)
	assert.True(t, cfg.Output.Preview)
	assert.Equal(t, 256, cfg.Output.PreviewWidth, "unset keys keep their defaults")
	assert.Equal(t, "localhost:9000", cfg.MinIO.Endpoint)

	kind, err := cfg.BackendKind()
	require.NoError(t, err)
	assert.Equal(t, common.BackendKindImmediate, kind)
	format, err := cfg.PixelFormat()
	require.NoError(t, err)
	assert.Equal(t, common.PixelFormatRGBA32Float, format)
	pt, err := cfg.EXRPixelType()
	require.NoError(t, err)
	assert.Equal(t, exr.PixelTypeFloat, pt)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "widht = 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widht")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OXY_WIDTH", "320")
	t.Setenv("OXY_END", "5")
	t.Setenv("OXY_BACKEND", "immediate")
	t.Setenv("OXY_RENDER_TIMEOUT", "1m")

	cfg, err := Load(writeConfig(t, "width = 640\n"))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 5, cfg.End)
	assert.Equal(t, "immediate", cfg.Backend)
	assert.Equal(t, time.Minute, cfg.RenderTimeout.Duration)

	t.Setenv("OXY_HEIGHT", "tall")
	_, err = Load("")
	assert.ErrorContains(t, err, "OXY_HEIGHT")
}

func TestRead_LeavesValidationToCaller(t *testing.T) {
	path := writeConfig(t, "start = 10\nend = 2\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "frame range")

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Start)
	assert.Equal(t, 2, cfg.End)

	cfg.End = 12
	assert.NoError(t, cfg.Validate())

	_, err = Read(writeConfig(t, "widht = 10\n"))
	assert.ErrorContains(t, err, "widht")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"backend", func(c *Config) { c.Backend = "vulkan" }},
		{"integer format", func(c *Config) { c.Format = "rgba8unorm" }},
		{"pixel type", func(c *Config) { c.PixelType = "uint" }},
		{"resolution", func(c *Config) { c.Height = 0 }},
		{"range", func(c *Config) { c.Start, c.End = 5, 4 }},
		{"timeout", func(c *Config) { c.RenderTimeout.Duration = 0 }},
		{"pattern", func(c *Config) { c.Output.Pattern = "frame.exr" }},
		{"minio credentials", func(c *Config) { c.MinIO.Enabled = true }},
		{"minio scheme", func(c *Config) {
			c.MinIO = MinIOConfig{Enabled: true, Endpoint: "http://localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "c"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMinIOConfig_NewClient(t *testing.T) {
	_, err := MinIOConfig{Endpoint: "localhost:9000"}.NewClient()
	assert.Error(t, err)

	client, err := MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "c", Region: "us-east-1"}.NewClient()
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", client.EndpointURL().Host)
}
