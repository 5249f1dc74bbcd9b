// Package models defines upload task state and the data exchanged with the
// remote chunk store.
package models

import "fmt"

// Status is the lifecycle state of an upload task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusBroken    Status = "broken"
)

// Terminal reports whether the scheduler will never touch a task in s again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusBroken
}

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusUploading, StatusCompleted, StatusBroken:
		return st, nil
	}
	return "", fmt.Errorf("unknown upload status %q", s)
}
