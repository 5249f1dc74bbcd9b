package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "http://127.0.0.1:8081/api", c.ServerURL)
	assert.Equal(t, TransportHTTP, c.Transport)
	assert.Equal(t, int64(5*1024*1024), c.ChunkSize)
	assert.Equal(t, 3, c.MaxConcurrent)
	assert.Equal(t, "md5", c.HashAlgorithm)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, 2, c.RetryCount)
	require.NoError(t, c.Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, rest, err := Load([]string{"upload", "a.pdf"})
	require.NoError(t, err)

	if diff := cmp.Diff(defaults(), *cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"upload", "a.pdf"}, rest)
}

func TestLoad_FlagsOverride(t *testing.T) {
	cfg, rest, err := Load([]string{
		"-a", "http://kb:9000/api", "-n", "5", "upload", "-org", "eng", "-b=10485760",
		"-k", "tok", "-l", "debug", "-d", "/tmp/j.db", "a.pdf",
	})
	require.NoError(t, err)

	want := defaults()
	want.ServerURL = "http://kb:9000/api"
	want.MaxConcurrent = 5
	want.ChunkSize = 10 * 1024 * 1024
	want.Token = "tok"
	want.LogLevel = "debug"
	want.DatabasePath = "/tmp/j.db"

	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"upload", "-org", "eng", "a.pdf"}, rest)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "cfg.json", `{
		"server_url": "http://json:1/api",
		"max_concurrent": 2,
		"request_timeout": "5s",
		"retry_count": 0,
		"hash_algorithm": "blake2b-256"
	}`)

	cfg, rest, err := Load([]string{"-config", path, "history"})
	require.NoError(t, err)

	assert.Equal(t, "http://json:1/api", cfg.ServerURL)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 0, cfg.RetryCount)
	assert.Equal(t, "blake2b-256", cfg.HashAlgorithm)
	assert.Equal(t, int64(5*1024*1024), cfg.ChunkSize, "unset file fields keep defaults")
	assert.Equal(t, []string{"history"}, rest)
}

func TestLoad_YAMLFileThenFlags(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
transport: s3
max_concurrent: 4
request_timeout: 1000000000
s3:
  bucket: uploads
  region: eu-central-1
  base_endpoint: http://minio:9000
  access_key: ak
  secret_key: sk
  prefix: kb/
`)

	cfg, _, err := Load([]string{"-c", path, "-n", "1"})
	require.NoError(t, err)

	assert.Equal(t, TransportS3, cfg.Transport)
	assert.Equal(t, 1, cfg.MaxConcurrent, "flags override the file")
	assert.Equal(t, time.Second, cfg.RequestTimeout)
	assert.Equal(t, S3{
		Bucket: "uploads", Region: "eu-central-1", BaseEndpoint: "http://minio:9000",
		AccessKey: "ak", SecretKey: "sk", Prefix: "kb/",
	}, cfg.S3)
}

func TestLoad_Errors(t *testing.T) {
	bad := writeFile(t, "bad.json", `{ not json`)
	badYAML := writeFile(t, "bad.yml", "max_concurrent: [1")

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"-c", filepath.Join(t.TempDir(), "none.json")}},
		{"invalid json", []string{"-c", bad}},
		{"invalid yaml", []string{"-c", badYAML}},
		{"non-numeric flag", []string{"-n", "many"}},
		{"zero concurrency", []string{"-n", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(tt.args)
			require.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"concurrency", func(c *Config) { c.MaxConcurrent = -1 }},
		{"retry count", func(c *Config) { c.RetryCount = -1 }},
		{"transport", func(c *Config) { c.Transport = "ftp" }},
		{"hash", func(c *Config) { c.HashAlgorithm = "sha1" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"s3 without bucket", func(c *Config) { c.Transport = TransportS3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), common.ErrorInvalidConfig)
		})
	}
}
