// Package client contains the transports the upload coordinator talks to.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic chunk store contract (see the Client interface):
//     UploadChunk, UploadStatus, MergeChunks and DeleteFile.
//  2. An HTTP implementation (see HTTPClient) for the document service's
//     /v1/upload API. It sends chunks as multipart bodies with the file
//     identity in X-* headers, unwraps the {code, message, data} envelope,
//     retries 429/5xx responses and maps HTTP status codes to sentinel errors.
//  3. An S3 implementation (see S3Client) that stores each file as one S3
//     multipart upload, for deployments that write straight to a bucket.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotFound and
// ErrMalformedResponse. Business rejections surface as *APIError.
//
// Concurrency & Contexts
//
// Implementations are safe for concurrent use. All operations accept
// context.Context and honor cancellation and timeouts.
package client
