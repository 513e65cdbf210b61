package internal

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrInvalidRecordID     = errors.New("invalid record id")
	ErrUnknownRef          = errors.New("unknown ref")
	ErrEmptyCommit         = errors.New("nothing staged")
	ErrConflictingStagedOp = errors.New("conflicting staged operation")
	ErrDirtyWorktree       = errors.New("worktree has staged operations")
	ErrBranchMoved         = errors.New("branch moved")
	ErrStoreUnavailable    = errors.New("record store unavailable")
	ErrBranchExists        = errors.New("branch already exists")
	ErrLastBranch          = errors.New("cannot delete the only branch")
	ErrBranchInUse         = errors.New("branch is checked out by a worktree")
	ErrWorktreeNotFound    = errors.New("worktree not found")
	ErrCorruptCommit       = errors.New("commit id does not match its content")
	ErrNonFastForward      = errors.New("not a fast-forward merge")
	ErrMergeConflicts      = errors.New("merge produced unresolved conflicts")
)

var recordIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

// ValidRecordID reports whether s is usable as a record id. The same
// character set applies to branch names.
func ValidRecordID(s string) bool {
	return recordIDPattern.MatchString(s)
}

// MemoryRecord is the versioned unit. Identity is the ID; content and
// properties change across commits.
type MemoryRecord struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	Properties   map[string]string `json:"properties,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastModified time.Time         `json:"last_modified"`
}

func NewRecord(id, content string) *MemoryRecord {
	now := time.Now().UTC()
	return &MemoryRecord{
		ID:           id,
		Content:      content,
		CreatedAt:    now,
		LastModified: now,
	}
}

func (r *MemoryRecord) Clone() *MemoryRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Properties != nil {
		c.Properties = make(map[string]string, len(r.Properties))
		for k, v := range r.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// Equal compares versioned content, not timestamps.
func (r *MemoryRecord) Equal(other *MemoryRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ID != other.ID || r.Content != other.Content {
		return false
	}
	if len(r.Properties) != len(other.Properties) {
		return false
	}
	for k, v := range r.Properties {
		if other.Properties[k] != v {
			return false
		}
	}
	return true
}

// RecordFilter narrows a Query. Zero value matches everything.
type RecordFilter struct {
	IDPrefix    string
	PropertyKey string
	PropertyVal string // only checked when PropertyKey is set
}

func (f RecordFilter) Matches(r *MemoryRecord) bool {
	if f.IDPrefix != "" && len(r.ID) < len(f.IDPrefix) {
		return false
	}
	if f.IDPrefix != "" && r.ID[:len(f.IDPrefix)] != f.IDPrefix {
		return false
	}
	if f.PropertyKey != "" {
		v, ok := r.Properties[f.PropertyKey]
		if !ok {
			return false
		}
		if f.PropertyVal != "" && v != f.PropertyVal {
			return false
		}
	}
	return true
}

// RecordStore is the storage boundary the engine replays checkouts through.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	Get(ctx context.Context, id string) (*MemoryRecord, error)
	Put(ctx context.Context, rec *MemoryRecord) error
	Delete(ctx context.Context, id string) (bool, error)
	Query(ctx context.Context, filter RecordFilter) ([]*MemoryRecord, error)
}
