package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStoreConfig configures the durable record store.
type BadgerStoreConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory disables disk persistence. Used by tests and throwaway
	// worktrees.
	InMemory bool

	// SyncWrites trades latency for durability.
	SyncWrites bool

	// Logger receives badger's internal messages. Nil silences them.
	Logger *slog.Logger
}

// BadgerStore is a RecordStore on an embedded BadgerDB, for worktrees whose
// materialized state must survive process restarts.
type BadgerStore struct {
	db *badger.DB
}

var _ RecordStore = (*BadgerStore)(nil)

func NewBadgerStore(cfg BadgerStoreConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", errors.Join(ErrStoreUnavailable, err))
	}

	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(ctx context.Context, id string) (*MemoryRecord, error) {
	var rec MemoryRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", errors.Join(ErrStoreUnavailable, err))
	}

	return &rec, nil
}

func (s *BadgerStore) Put(ctx context.Context, rec *MemoryRecord) error {
	if !ValidRecordID(rec.ID) {
		return ErrInvalidRecordID
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("put record: %w", errors.Join(ErrStoreUnavailable, err))
	}
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, id string) (bool, error) {
	existed := false

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete([]byte(id))
	})
	if err != nil {
		return false, fmt.Errorf("delete record: %w", errors.Join(ErrStoreUnavailable, err))
	}

	return existed, nil
}

func (s *BadgerStore) Query(ctx context.Context, filter RecordFilter) ([]*MemoryRecord, error) {
	var out []*MemoryRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(filter.IDPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec MemoryRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			if filter.Matches(&rec) {
				out = append(out, &rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query records: %w", errors.Join(ErrStoreUnavailable, err))
	}

	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
