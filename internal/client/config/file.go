package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/kbupload/internal/flagx"
	"github.com/dmitrijs2005/kbupload/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config, shared by JSON and YAML.
// Durations use timex.Duration so files may say "30s" or give nanoseconds.
// Zero values leave the current setting alone.
type FileConfig struct {
	ServerURL      string         `json:"server_url" yaml:"server_url"`
	Transport      string         `json:"transport" yaml:"transport"`
	Token          string         `json:"token" yaml:"token"`
	ChunkSize      int64          `json:"chunk_size" yaml:"chunk_size"`
	HashWindow     int64          `json:"hash_window" yaml:"hash_window"`
	HashAlgorithm  string         `json:"hash_algorithm" yaml:"hash_algorithm"`
	MaxConcurrent  int            `json:"max_concurrent" yaml:"max_concurrent"`
	RequestTimeout timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	RetryCount     *int           `json:"retry_count" yaml:"retry_count"`
	DatabasePath   string         `json:"database_path" yaml:"database_path"`
	LogLevel       string         `json:"log_level" yaml:"log_level"`
	S3             FileS3         `json:"s3" yaml:"s3"`
}

type FileS3 struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	BaseEndpoint string `json:"base_endpoint" yaml:"base_endpoint"`
	AccessKey    string `json:"access_key" yaml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
	Prefix       string `json:"prefix" yaml:"prefix"`
}

func configFile(args []string) string {
	return flagx.ConfigFile(args)
}

// parseFile overlays cfg with the file at path. The extension picks the
// format: .yaml/.yml are YAML, anything else JSON.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.ServerURL, fc.ServerURL)
	setString(&cfg.Transport, fc.Transport)
	setString(&cfg.Token, fc.Token)
	setString(&cfg.HashAlgorithm, fc.HashAlgorithm)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.LogLevel, fc.LogLevel)

	if fc.ChunkSize != 0 {
		cfg.ChunkSize = fc.ChunkSize
	}
	if fc.HashWindow != 0 {
		cfg.HashWindow = fc.HashWindow
	}
	if fc.MaxConcurrent != 0 {
		cfg.MaxConcurrent = fc.MaxConcurrent
	}
	if fc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.RetryCount != nil {
		cfg.RetryCount = *fc.RetryCount
	}

	setString(&cfg.S3.Bucket, fc.S3.Bucket)
	setString(&cfg.S3.Region, fc.S3.Region)
	setString(&cfg.S3.BaseEndpoint, fc.S3.BaseEndpoint)
	setString(&cfg.S3.AccessKey, fc.S3.AccessKey)
	setString(&cfg.S3.SecretKey, fc.S3.SecretKey)
	setString(&cfg.S3.Prefix, fc.S3.Prefix)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
