package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/dmitrijs2005/kbupload/internal/hashx"
	"github.com/dmitrijs2005/kbupload/internal/logging"
)

const (
	TransportHTTP = "http"
	TransportS3   = "s3"
)

// S3 holds the direct-to-bucket transport settings.
type S3 struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

// Config holds runtime settings for the kbupload CLI.
//
// ChunkSize and HashWindow are in bytes. DatabasePath empty means
// kbupload.db under the user config directory.
type Config struct {
	ServerURL      string
	Transport      string
	Token          string
	ChunkSize      int64
	HashWindow     int64
	HashAlgorithm  string
	MaxConcurrent  int
	RequestTimeout time.Duration
	RetryCount     int
	DatabasePath   string
	LogLevel       string
	S3             S3
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8081/api"
	c.Transport = TransportHTTP
	c.ChunkSize = common.DefaultChunkSize
	c.HashWindow = common.DefaultHashWindow
	c.HashAlgorithm = string(hashx.MD5)
	c.MaxConcurrent = common.DefaultMaxConcurrent
	c.RequestTimeout = 30 * time.Second
	c.RetryCount = 2
	c.LogLevel = "info"
	c.S3.Region = "us-east-1"
}

// Load builds a Config from defaults, then the file named by -c/-config (if
// any), then the global flags in args. It returns the arguments that are not
// global flags, which start with the subcommand.
func Load(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := configFile(args); path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, nil, err
		}
	}

	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, rest, nil
}

// Validate rejects settings the uploader cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", common.ErrorInvalidConfig, c.ChunkSize)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max concurrent must be positive, got %d", common.ErrorInvalidConfig, c.MaxConcurrent)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("%w: retry count must not be negative", common.ErrorInvalidConfig)
	}
	if !slices.Contains([]string{TransportHTTP, TransportS3}, c.Transport) {
		return fmt.Errorf("%w: unknown transport %q", common.ErrorInvalidConfig, c.Transport)
	}
	if _, err := hashx.New(hashx.Algorithm(c.HashAlgorithm), c.HashWindow); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInvalidConfig, err)
	}
	if c.Transport == TransportS3 && c.S3.Bucket == "" {
		return fmt.Errorf("%w: s3 transport needs a bucket", common.ErrorInvalidConfig)
	}
	return nil
}
