package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// groupIndexTag starts every index key; cache keys never contain NUL.
const groupIndexTag = "\x00group\x00"

// BadgerStore is an embedded Store using Badger's native entry TTL. Group membership is kept as empty
// index entries under groupIndexTag+group+NUL+key, expiring with their member.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens Badger at path, or in memory when path is empty.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.ValueLogFileSize = 16 << 20
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	return out, err
}

// Set writes the value and one index entry per group, all with the same TTL.
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, groups ...string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entries := make([]*badger.Entry, 0, 1+len(groups))
		entries = append(entries, badger.NewEntry([]byte(key), value))
		for _, g := range groups {
			entries = append(entries, badger.NewEntry(groupIndexKey(g, key), nil))
		}
		for _, e := range entries {
			if ttl > 0 {
				e = e.WithTTL(ttl)
			}
			if err := txn.SetEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteGroup reads the group's index entries, then deletes them together with their members.
func (s *BadgerStore) DeleteGroup(ctx context.Context, group string) error {
	prefix := groupIndexKey(group, "")
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx := it.Item().KeyCopy(nil)
			keys = append(keys, idx, idx[len(prefix):])
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func groupIndexKey(group, key string) []byte {
	return []byte(groupIndexTag + group + "\x00" + key)
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("cache: badger is closed")
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
