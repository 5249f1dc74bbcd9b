package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/go-resty/resty/v2"
)

const (
	chunkPath  = "/v1/upload/chunk"
	statusPath = "/v1/upload/status"
	mergePath  = "/v1/upload/merge"
	deletePath = "/v1/documents/{fileMd5}"
	filesPath  = "/v1/documents/uploads"
)

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

// HTTPClient talks to the document service's upload API.
type HTTPClient struct {
	http *resty.Client
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Lister = (*HTTPClient)(nil)
)

// NewHTTPClient builds a resty-backed client. 429 and 5xx responses are
// retried RetryCount times before an error is returned.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	wait := opts.RetryWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	r := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(4 * wait).
		SetRetryResetReaders(true).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	if opts.Token != "" {
		r.SetAuthToken(opts.Token)
	}

	return &HTTPClient{http: r}
}

type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPClient) UploadChunk(ctx context.Context, req models.ChunkRequest) (*models.ChunkProgress, error) {
	r := c.http.R().
		SetContext(ctx).
		SetHeader(common.HeaderFileMD5, req.FileHash).
		SetHeader(common.HeaderChunkIndex, strconv.Itoa(req.ChunkIndex)).
		SetHeader(common.HeaderTotalSize, strconv.FormatInt(req.TotalSize, 10)).
		SetHeader(common.HeaderTotalChunks, strconv.Itoa(req.TotalChunks)).
		SetHeader(common.HeaderFileName, req.FileName).
		SetHeader(common.HeaderOrgTag, req.OrgTag).
		SetHeader(common.HeaderIsPublic, strconv.FormatBool(req.IsPublic)).
		SetMultipartField("file", req.FileName, "application/octet-stream", bytes.NewReader(req.Data))

	var out models.ChunkProgress
	if err := c.do(r, http.MethodPost, chunkPath, &out); err != nil {
		return nil, fmt.Errorf("upload chunk %d: %w", req.ChunkIndex, err)
	}
	if out.Uploaded == nil {
		return nil, fmt.Errorf("upload chunk %d: %w: no uploaded list", req.ChunkIndex, ErrMalformedResponse)
	}

	return &out, nil
}

func (c *HTTPClient) UploadStatus(ctx context.Context, fileHash string) (*models.UploadStatus, error) {
	r := c.http.R().
		SetContext(ctx).
		SetQueryParam("file_md5", fileHash)

	var out models.UploadStatus
	if err := c.do(r, http.MethodGet, statusPath, &out); err != nil {
		return nil, fmt.Errorf("upload status: %w", err)
	}
	if out.Uploaded == nil {
		out.Uploaded = []int{}
	}

	return &out, nil
}

type mergeRequest struct {
	FileMD5  string `json:"fileMd5"`
	FileName string `json:"fileName"`
}

type mergeResponse struct {
	ObjectURL      string `json:"objectUrl"`
	ObjectURLSnake string `json:"object_url"`
	FileSize       int64  `json:"fileSize"`
}

func (c *HTTPClient) MergeChunks(ctx context.Context, fileHash, fileName string) (*models.MergeResult, error) {
	r := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mergeRequest{FileMD5: fileHash, FileName: fileName})

	var out mergeResponse
	if err := c.do(r, http.MethodPost, mergePath, &out); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	res := &models.MergeResult{ObjectURL: out.ObjectURL, FileSize: out.FileSize}
	if res.ObjectURL == "" {
		res.ObjectURL = out.ObjectURLSnake
	}

	return res, nil
}

func (c *HTTPClient) DeleteFile(ctx context.Context, fileHash string) error {
	r := c.http.R().
		SetContext(ctx).
		SetPathParam("fileMd5", fileHash)

	if err := c.do(r, http.MethodDelete, deletePath, nil); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// ListFiles returns the uploads the service holds for the token's user.
// The list may come bare, in the {code, data} envelope or in the
// {status, data} wrapper the documents endpoints use.
func (c *HTTPClient) ListFiles(ctx context.Context) ([]models.StoredFile, error) {
	r := c.http.R().SetContext(ctx)

	var raw json.RawMessage
	if err := c.do(r, http.MethodGet, filesPath, &raw); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	files, err := decodeFileList(raw)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func decodeFileList(raw json.RawMessage) ([]models.StoredFile, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var files []models.StoredFile
		if err := json.Unmarshal(raw, &files); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return files, nil
	}

	var wrapped struct {
		Status  string               `json:"status"`
		Message string               `json:"message"`
		Data    *[]models.StoredFile `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if wrapped.Status == "error" {
		return nil, &APIError{Status: http.StatusOK, Message: wrapped.Message}
	}
	if wrapped.Data == nil {
		return nil, fmt.Errorf("%w: no file list", ErrMalformedResponse)
	}
	return *wrapped.Data, nil
}

func (c *HTTPClient) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// do executes the request and decodes the payload into out (if non-nil).
func (c *HTTPClient) do(r *resty.Request, method, path string, out any) error {
	resp, err := r.Execute(method, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if err := mapStatus(resp); err != nil {
		return err
	}

	return decodePayload(resp.StatusCode(), resp.Body(), out)
}

func mapStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	if code < 400 {
		return nil
	}

	msg := errorMessage(resp.Body())
	if msg == "" {
		msg = resp.Status()
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}
	return &APIError{Status: code, Code: code, Message: msg}
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Error != "" {
		return eb.Error
	}
	return eb.Message
}

// decodePayload accepts both the {code, message, data} envelope and a bare
// JSON payload.
func decodePayload(status int, body []byte, out any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		if out == nil {
			return nil
		}
		return fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if out == nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	payload := json.RawMessage(body)
	if env.Code != nil {
		if *env.Code < 200 || *env.Code >= 300 {
			return &APIError{Status: status, Code: *env.Code, Message: env.Message}
		}
		payload = env.Data
	}

	if out == nil {
		return nil
	}
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("%w: no data", ErrMalformedResponse)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}
