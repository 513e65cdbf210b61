package internal

import (
	"fmt"
	"time"
)

type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Operation is a single versioned change to one record.
type Operation struct {
	Kind       OpKind            `json:"kind"`
	ID         string            `json:"id"`
	Content    string            `json:"content,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

func AddOp(rec *MemoryRecord) Operation {
	return Operation{Kind: OpAdd, ID: rec.ID, Content: rec.Content, Properties: rec.Properties}
}

func UpdateOp(id, content string, properties map[string]string) Operation {
	return Operation{Kind: OpUpdate, ID: id, Content: content, Properties: properties}
}

func DeleteOp(id string) Operation {
	return Operation{Kind: OpDelete, ID: id}
}

func (o Operation) Validate() error {
	if !ValidRecordID(o.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidRecordID, o.ID)
	}
	switch o.Kind {
	case OpAdd, OpUpdate, OpDelete:
		return nil
	default:
		return fmt.Errorf("unknown operation kind %q", o.Kind)
	}
}

// validateOps rejects invalid operations and multiple operations targeting
// the same id within one commit.
func validateOps(ops []Operation) error {
	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
		if seen[op.ID] {
			return fmt.Errorf("%w: duplicate operation for %q", ErrConflictingStagedOp, op.ID)
		}
		seen[op.ID] = true
	}
	return nil
}

// applyOp replays one operation onto a record state. Replay is total: an
// update to a missing id materializes it, a delete of a missing id is a
// no-op, so every commit sequence yields a deterministic state.
func applyOp(state map[string]*MemoryRecord, op Operation, at time.Time) {
	switch op.Kind {
	case OpAdd:
		state[op.ID] = &MemoryRecord{
			ID:           op.ID,
			Content:      op.Content,
			Properties:   cloneProps(op.Properties),
			CreatedAt:    at,
			LastModified: at,
		}
	case OpUpdate:
		prev, ok := state[op.ID]
		created := at
		if ok {
			created = prev.CreatedAt
		}
		state[op.ID] = &MemoryRecord{
			ID:           op.ID,
			Content:      op.Content,
			Properties:   cloneProps(op.Properties),
			CreatedAt:    created,
			LastModified: at,
		}
	case OpDelete:
		delete(state, op.ID)
	}
}

func cloneProps(props map[string]string) map[string]string {
	if props == nil {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
