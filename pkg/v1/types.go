package v1

import (
	"time"

	"github.com/memvc/memvc/internal"
)

// Record is a stored memory record.
type Record struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Commit is one entry in the version history.
type Commit struct {
	ID        string    `json:"id"`
	Parents   []string  `json:"parents,omitempty"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Merge strategies accepted by Client.Merge and Client.Fork.
const (
	StrategyFastForward  = string(internal.FastForward)
	StrategyPreferOurs   = string(internal.PreferOurs)
	StrategyPreferTheirs = string(internal.PreferTheirs)
	StrategyManual       = string(internal.Manual)
)

// ForkStatus reports how a Fork ended.
type ForkStatus string

const (
	ForkMerged     ForkStatus = ForkStatus(internal.SubagentMerged)
	ForkConflicted ForkStatus = ForkStatus(internal.SubagentConflicted)
	ForkFailed     ForkStatus = ForkStatus(internal.SubagentFailed)
)

// ForkResult describes the outcome of a delegated fork. On ForkConflicted
// the branch survives so the conflicts can be resolved and merged later.
type ForkResult struct {
	Status    ForkStatus `json:"status"`
	Branch    string     `json:"branch"`
	Conflicts []string   `json:"conflicts,omitempty"` // conflicted record ids
	TaskErr   error      `json:"-"`
}

func toRecord(rec *internal.MemoryRecord) Record {
	return Record{
		ID:         rec.ID,
		Content:    rec.Content,
		Properties: rec.Properties,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.LastModified,
	}
}

func toCommit(c *internal.Commit) Commit {
	return Commit{
		ID:        c.ID,
		Parents:   c.Parents,
		Author:    c.Author,
		Message:   c.Message,
		Timestamp: c.Timestamp,
	}
}
