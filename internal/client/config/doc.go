// Package config loads runtime configuration for the kbupload CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in .yaml
//     or .yml are read as YAML, everything else as JSON.
//  3. Global command-line flags, which override earlier values.
//
// Global flags
//
//	-a string   base URL of the document service API
//	-t string   transport: http or s3
//	-k string   bearer token
//	-n int      max files uploading at once
//	-b int      chunk size in bytes
//	-l string   log level (debug, info, warn, error)
//	-d string   journal database path
//
// # File schema
//
// Durations use timex.Duration, so values can be either strings like "30s"
// or integer nanoseconds:
//
//	server_url: http://kb.internal:8081/api
//	max_concurrent: 3
//	request_timeout: 30s
//	s3:
//	  bucket: uploads
//	  base_endpoint: http://minio:9000
//
// The package does not read environment variables; the AWS SDK still picks
// up its usual environment when no S3 keys are configured.
package config
