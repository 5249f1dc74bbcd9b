package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/gabriel-vasile/mimetype"
)

// MinPartSize is the smallest part S3 accepts for any part but the last.
const MinPartSize int64 = 5 * 1024 * 1024

// S3API is the subset of the S3 client used by S3Client.
type S3API interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	ListParts(ctx context.Context, params *s3.ListPartsInput, optFns ...func(*s3.Options)) (*s3.ListPartsOutput, error)
	ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options configures an S3Client.
type S3Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
	ChunkSize    int64
}

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

// S3Client stores every file as one multipart upload keyed by its hash.
// Part number is chunk index + 1.
type S3Client struct {
	api  S3API
	opts S3Options

	mu      sync.Mutex
	uploads map[string]string // object key -> upload id
	totals  map[string]int    // file hash -> total chunks
}

// NewS3Client loads AWS config (static credentials when given) and builds
// a client. A custom BaseEndpoint switches to path-style addressing, which
// MinIO needs.
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3ClientWithAPI(api, opts)
}

// NewS3ClientWithAPI wires an existing S3API.
func NewS3ClientWithAPI(api S3API, opts S3Options) (*S3Client, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if opts.ChunkSize < MinPartSize {
		return nil, fmt.Errorf("s3: chunk size %d is below the %d byte minimum part size", opts.ChunkSize, MinPartSize)
	}
	return &S3Client{
		api:     api,
		opts:    opts,
		uploads: make(map[string]string),
		totals:  make(map[string]int),
	}, nil
}

func (c *S3Client) key(fileHash string) string {
	return c.opts.Prefix + fileHash
}

func (c *S3Client) UploadChunk(ctx context.Context, req models.ChunkRequest) (*models.ChunkProgress, error) {
	key := c.key(req.FileHash)

	uploadID, err := c.findUpload(ctx, key)
	if errors.Is(err, ErrNotFound) {
		uploadID, err = c.createUpload(ctx, key, req)
	}
	if err != nil {
		return nil, fmt.Errorf("upload chunk %d: %w", req.ChunkIndex, err)
	}

	_, err = c.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(c.opts.Bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(int32(req.ChunkIndex + 1)),
		Body:          bytes.NewReader(req.Data),
		ContentLength: aws.Int64(int64(len(req.Data))),
	})
	if err != nil {
		return nil, fmt.Errorf("upload chunk %d: %w", req.ChunkIndex, mapS3Error(err))
	}

	parts, err := c.listParts(ctx, key, uploadID)
	if err != nil {
		return nil, fmt.Errorf("upload chunk %d: %w", req.ChunkIndex, err)
	}

	c.mu.Lock()
	c.totals[req.FileHash] = req.TotalChunks
	c.mu.Unlock()

	uploaded := partIndices(parts)
	return &models.ChunkProgress{Uploaded: uploaded, Progress: progressOf(len(uploaded), req.TotalChunks)}, nil
}

func (c *S3Client) UploadStatus(ctx context.Context, fileHash string) (*models.UploadStatus, error) {
	key := c.key(fileHash)

	uploadID, err := c.findUpload(ctx, key)
	if err == nil {
		parts, err := c.listParts(ctx, key, uploadID)
		if err != nil {
			return nil, fmt.Errorf("upload status: %w", err)
		}
		c.mu.Lock()
		total := c.totals[fileHash]
		c.mu.Unlock()

		uploaded := partIndices(parts)
		return &models.UploadStatus{Uploaded: uploaded, Progress: progressOf(len(uploaded), total), TotalChunks: total}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("upload status: %w", err)
	}

	head, err := c.head(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("upload status: %w", err)
	}

	total := models.TotalChunks(aws.ToInt64(head.ContentLength), c.opts.ChunkSize)
	uploaded := make([]int, total)
	for i := range uploaded {
		uploaded[i] = i
	}
	return &models.UploadStatus{Uploaded: uploaded, Progress: 100, TotalChunks: total}, nil
}

func (c *S3Client) MergeChunks(ctx context.Context, fileHash, fileName string) (*models.MergeResult, error) {
	key := c.key(fileHash)

	uploadID, err := c.findUpload(ctx, key)
	if errors.Is(err, ErrNotFound) {
		// Already merged: report the existing object.
		return c.mergeResult(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	parts, err := c.listParts(ctx, key, uploadID)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("merge %s: %w: no parts uploaded", fileName, ErrNotFound)
	}

	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{ETag: p.ETag, PartNumber: p.PartNumber})
	}

	_, err = c.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.opts.Bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return nil, fmt.Errorf("merge: %w", mapS3Error(err))
	}

	c.mu.Lock()
	delete(c.uploads, key)
	c.mu.Unlock()

	return c.mergeResult(ctx, key)
}

func (c *S3Client) mergeResult(ctx context.Context, key string) (*models.MergeResult, error) {
	head, err := c.head(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return &models.MergeResult{
		ObjectURL: fmt.Sprintf("s3://%s/%s", c.opts.Bucket, key),
		FileSize:  aws.ToInt64(head.ContentLength),
	}, nil
}

func (c *S3Client) DeleteFile(ctx context.Context, fileHash string) error {
	key := c.key(fileHash)

	uploadID, err := c.findUpload(ctx, key)
	switch {
	case err == nil:
		_, err = c.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(c.opts.Bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
		})
		if err != nil && !errors.Is(mapS3Error(err), ErrNotFound) {
			return fmt.Errorf("delete: %w", mapS3Error(err))
		}
		c.mu.Lock()
		delete(c.uploads, key)
		c.mu.Unlock()
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("delete: %w", err)
	}

	if _, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.opts.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete: %w", mapS3Error(err))
	}
	return nil
}

func (c *S3Client) Close() error { return nil }

// findUpload returns the in-progress upload id for key, or ErrNotFound.
func (c *S3Client) findUpload(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	id, ok := c.uploads[key]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	out, err := c.api.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(c.opts.Bucket),
		Prefix: aws.String(key),
	})
	if err != nil {
		return "", mapS3Error(err)
	}

	for _, u := range out.Uploads {
		if aws.ToString(u.Key) == key {
			id = aws.ToString(u.UploadId)
			c.mu.Lock()
			c.uploads[key] = id
			c.mu.Unlock()
			return id, nil
		}
	}
	return "", ErrNotFound
}

func (c *S3Client) createUpload(ctx context.Context, key string, req models.ChunkRequest) (string, error) {
	out, err := c.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.opts.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimetype.Detect(req.Data).String()),
		Metadata: map[string]string{
			"file-name":  req.FileName,
			"org-tag":    req.OrgTag,
			"is-public":  strconv.FormatBool(req.IsPublic),
			"total-size": strconv.FormatInt(req.TotalSize, 10),
		},
	})
	if err != nil {
		return "", mapS3Error(err)
	}

	id := aws.ToString(out.UploadId)
	c.mu.Lock()
	c.uploads[key] = id
	c.mu.Unlock()
	return id, nil
}

func (c *S3Client) listParts(ctx context.Context, key, uploadID string) ([]types.Part, error) {
	var parts []types.Part
	var marker *string

	for {
		out, err := c.api.ListParts(ctx, &s3.ListPartsInput{
			Bucket:           aws.String(c.opts.Bucket),
			Key:              aws.String(key),
			UploadId:         aws.String(uploadID),
			PartNumberMarker: marker,
		})
		if err != nil {
			return nil, mapS3Error(err)
		}
		parts = append(parts, out.Parts...)
		if !aws.ToBool(out.IsTruncated) || out.NextPartNumberMarker == nil {
			break
		}
		marker = out.NextPartNumberMarker
	}

	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})
	return parts, nil
}

func (c *S3Client) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}
	return out, nil
}

func partIndices(parts []types.Part) []int {
	idx := make([]int, 0, len(parts))
	for _, p := range parts {
		idx = append(idx, int(aws.ToInt32(p.PartNumber))-1)
	}
	return idx
}

func mapS3Error(err error) error {
	var (
		notFound     *types.NotFound
		noSuchKey    *types.NoSuchKey
		noSuchUpload *types.NoSuchUpload
	)
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchUpload) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchUpload":
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case "SlowDown", "ServiceUnavailable", "InternalError":
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	return err
}
