package models

// ChunkRequest is one chunk sent to the chunk store.
type ChunkRequest struct {
	FileHash    string
	ChunkIndex  int
	TotalChunks int
	TotalSize   int64
	FileName    string
	OrgTag      string
	IsPublic    bool
	Data        []byte
}

// ChunkProgress is the store's reply to a chunk: the full list of chunk
// indices it holds for the file, not just the one just sent.
type ChunkProgress struct {
	Uploaded []int   `json:"uploaded"`
	Progress float64 `json:"progress"`
}

// UploadStatus describes what the store holds for a file hash.
type UploadStatus struct {
	Uploaded    []int   `json:"uploaded"`
	Progress    float64 `json:"progress"`
	TotalChunks int     `json:"totalChunks"`
}

// MergeResult describes the assembled object.
type MergeResult struct {
	ObjectURL string `json:"objectUrl"`
	FileSize  int64  `json:"fileSize"`
}

// StoredFile is one upload the document service has on record for the
// current user. Status is 0 while chunks are arriving and 1 once merged.
type StoredFile struct {
	FileHash  string `json:"fileMd5"`
	FileName  string `json:"fileName"`
	TotalSize int64  `json:"totalSize"`
	Status    int    `json:"status"`
	UserID    string `json:"userId"`
	CreatedAt string `json:"createdAt"`
	MergedAt  string `json:"mergedAt"`
}

func (f StoredFile) Merged() bool { return f.Status == 1 }
