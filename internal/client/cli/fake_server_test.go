package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/kbupload/internal/common"
)

// docServer fakes the document service upload API in memory.
type docServer struct {
	*httptest.Server

	mu      sync.Mutex
	chunks  map[string]map[int][]byte
	totals  map[string]int
	merged  map[string][]byte
	orgTags map[string]string
	names   map[string]string
	sizes   map[string]int64
	auth    []string
	sent    map[string][]int
	failAt  map[string]int
}

func newDocServer(t *testing.T) *docServer {
	t.Helper()
	s := &docServer{
		chunks:  map[string]map[int][]byte{},
		totals:  map[string]int{},
		merged:  map[string][]byte{},
		orgTags: map[string]string{},
		names:   map[string]string{},
		sizes:   map[string]int64{},
		sent:    map[string][]int{},
		failAt:  map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/upload/chunk", s.chunk)
	mux.HandleFunc("GET /api/v1/upload/status", s.status)
	mux.HandleFunc("POST /api/v1/upload/merge", s.merge)
	mux.HandleFunc("DELETE /api/v1/documents/{md5}", s.delete)
	mux.HandleFunc("GET /api/v1/documents/uploads", s.list)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func reply(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "message": http.StatusText(status), "data": data})
}

func (s *docServer) uploadedLocked(hash string) []int {
	out := []int{}
	for i := range s.chunks[hash] {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

func (s *docServer) chunk(w http.ResponseWriter, r *http.Request) {
	hash := r.Header.Get(common.HeaderFileMD5)
	idx, _ := strconv.Atoi(r.Header.Get(common.HeaderChunkIndex))
	total, _ := strconv.Atoi(r.Header.Get(common.HeaderTotalChunks))

	f, _, err := r.FormFile("file")
	if err != nil {
		reply(w, http.StatusBadRequest, nil)
		return
	}
	data, _ := io.ReadAll(f)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.sent[hash] = append(s.sent[hash], idx)
	s.orgTags[hash] = r.Header.Get(common.HeaderOrgTag)
	s.names[hash] = r.Header.Get(common.HeaderFileName)
	s.sizes[hash], _ = strconv.ParseInt(r.Header.Get(common.HeaderTotalSize), 10, 64)

	if at, ok := s.failAt[hash]; ok && at == idx {
		reply(w, http.StatusBadRequest, nil)
		return
	}

	if s.chunks[hash] == nil {
		s.chunks[hash] = map[int][]byte{}
	}
	s.chunks[hash][idx] = data
	s.totals[hash] = total

	uploaded := s.uploadedLocked(hash)
	reply(w, http.StatusOK, map[string]any{
		"uploaded": uploaded,
		"progress": float64(len(uploaded)) / float64(total) * 100,
	})
}

func (s *docServer) status(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("file_md5")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks[hash] == nil {
		reply(w, http.StatusNotFound, nil)
		return
	}
	uploaded := s.uploadedLocked(hash)
	reply(w, http.StatusOK, map[string]any{
		"uploaded":    uploaded,
		"progress":    float64(len(uploaded)) / float64(s.totals[hash]) * 100,
		"totalChunks": s.totals[hash],
	})
}

func (s *docServer) merge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileMD5  string `json:"fileMd5"`
		FileName string `json:"fileName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reply(w, http.StatusBadRequest, nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	parts := s.chunks[req.FileMD5]
	if len(parts) == 0 || len(parts) != s.totals[req.FileMD5] {
		reply(w, http.StatusBadRequest, nil)
		return
	}
	var buf []byte
	for i := range len(parts) {
		buf = append(buf, parts[i]...)
	}
	s.merged[req.FileMD5] = buf
	reply(w, http.StatusOK, map[string]any{
		"objectUrl": "http://minio/docs/" + req.FileName,
		"fileSize":  len(buf),
	})
}

func (s *docServer) delete(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("md5")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks[hash] == nil && s.merged[hash] == nil {
		reply(w, http.StatusNotFound, nil)
		return
	}
	delete(s.chunks, hash)
	delete(s.merged, hash)
	reply(w, http.StatusOK, nil)
}

// list answers in the {status, data} shape of the documents endpoints.
func (s *docServer) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashes := make([]string, 0, len(s.chunks))
	for h := range s.chunks {
		hashes = append(hashes, h)
	}
	slices.Sort(hashes)

	files := []map[string]any{}
	for _, h := range hashes {
		status := 0
		if _, ok := s.merged[h]; ok {
			status = 1
		}
		files = append(files, map[string]any{
			"fileMd5": h, "fileName": s.names[h], "totalSize": s.sizes[h],
			"status": status, "createdAt": "2025-03-01T10:00:00",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": files})
}

func (s *docServer) mergedFor(hash string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.merged[hash]
	return b, ok
}

func (s *docServer) sentFor(hash string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent[hash])
}

func (s *docServer) orgTagFor(hash string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orgTags[hash]
}

func (s *docServer) authHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.auth)
}

func (s *docServer) set(fn func(s *docServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// syncBuffer is a strings.Builder safe for the coordinator's goroutines.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}
