// Package common contains shared constants and sentinel errors used across
// kbupload components.
package common

// Request headers understood by the chunk store's upload endpoint.
const (
	HeaderFileMD5     = "X-File-MD5"
	HeaderChunkIndex  = "X-Chunk-Index"
	HeaderTotalSize   = "X-Total-Size"
	HeaderTotalChunks = "X-Total-Chunks"
	HeaderFileName    = "X-File-Name"
	HeaderOrgTag      = "X-Org-Tag"
	HeaderIsPublic    = "X-Is-Public"
)

const (
	// MiB is one mebibyte.
	MiB = 1024 * 1024

	// DefaultChunkSize must match the chunk boundaries the server expects;
	// it stays fixed for a file across sessions so resumed indices line up.
	DefaultChunkSize int64 = 5 * MiB

	// DefaultHashWindow is the read window of the content hasher. It is
	// independent of the chunk size.
	DefaultHashWindow int64 = 5 * MiB

	// DefaultMaxConcurrent caps the number of files uploading at once.
	DefaultMaxConcurrent = 3
)

// KeyringService is the OS keyring service name the bearer token is stored under.
const KeyringService = "kbupload"
