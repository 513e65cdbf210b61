package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Commit is an immutable node in the history graph. Its ID is a SHA-256
// digest over the serialized body, so a stored commit can always be
// re-verified against its id.
type Commit struct {
	ID         string      `json:"id"`
	Parents    []string    `json:"parents,omitempty"`
	Operations []Operation `json:"operations,omitempty"`
	Author     string      `json:"author"`
	Timestamp  time.Time   `json:"timestamp"`
	Message    string      `json:"message"`
}

// commitBody is the hashed portion of a commit. Field and parent order are
// significant: the first parent is the commit's own lineage.
type commitBody struct {
	Parents    []string    `json:"parents"`
	Operations []Operation `json:"operations"`
	Author     string      `json:"author"`
	Timestamp  string      `json:"timestamp"`
	Message    string      `json:"message"`
}

// NewCommit seals operations into a commit. Root commits (no parents) and
// merge commits (two or more parents) may carry zero operations; a normal
// commit may not.
func NewCommit(parents []string, ops []Operation, author, message string, at time.Time) (*Commit, error) {
	if err := validateOps(ops); err != nil {
		return nil, err
	}
	if len(ops) == 0 && len(parents) == 1 {
		return nil, ErrEmptyCommit
	}

	c := &Commit{
		Parents:    append([]string(nil), parents...),
		Operations: append([]Operation(nil), ops...),
		Author:     author,
		Timestamp:  at.UTC(),
		Message:    message,
	}
	id, err := c.digest()
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

func (c *Commit) digest() (string, error) {
	body := commitBody{
		Parents:    c.Parents,
		Operations: c.Operations,
		Author:     c.Author,
		Timestamp:  c.Timestamp.UTC().Format(time.RFC3339Nano),
		Message:    c.Message,
	}
	if body.Parents == nil {
		body.Parents = []string{}
	}
	if body.Operations == nil {
		body.Operations = []Operation{}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("serialize commit: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the digest and compares it with the stored id.
func (c *Commit) Verify() error {
	id, err := c.digest()
	if err != nil {
		return err
	}
	if id != c.ID {
		return fmt.Errorf("%w: %s", ErrCorruptCommit, c.ID)
	}
	return nil
}

func (c *Commit) IsRoot() bool {
	return len(c.Parents) == 0
}

func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// FirstParent returns the commit's own lineage parent, or "" for a root.
func (c *Commit) FirstParent() string {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// ShortID is the abbreviated id used in human-facing output.
func (c *Commit) ShortID() string {
	if len(c.ID) < 8 {
		return c.ID
	}
	return c.ID[:8]
}
