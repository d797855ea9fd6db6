// Package store persists chains in badger, keyed by chain ID with a secondary
// index from article digest to the latest finished chain ID, and a separate
// marker for articles whose final summary was recorded.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"chain_of_density/generator"
)

// ErrNotFound is returned when no chain matches the key.
var ErrNotFound = errors.New("chain not found")

const (
	chainPrefix   = "chain/"
	articlePrefix  = "article/"
	recordedPrefix = "recorded/"
)

// Store is a badger-backed chain store, safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a persistent store in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put saves c. Only finished chains update the article index.
func (s *Store) Put(ctx context.Context, c *generator.Chain) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.ID == "" {
		return errors.New("chain without id")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(chainPrefix+c.ID), data); err != nil {
			return err
		}
		if c.State == generator.StateDone && c.Article.ID != "" {
			return txn.Set([]byte(articlePrefix+c.Article.ID), []byte(c.ID))
		}
		return nil
	})
}

// Get loads the chain with id.
func (s *Store) Get(ctx context.Context, id string) (*generator.Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var c generator.Chain
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(chainPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ByArticle returns the latest finished chain of the article digest.
func (s *Store) ByArticle(ctx context.Context, articleID string) (*generator.Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(articlePrefix + articleID))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id = string(v)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// List returns up to limit stored chain IDs in key order. limit <= 0 lists all.
func (s *Store) List(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(chainPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
		return nil
	})
	return ids, err
}

// MarkRecorded notes that the final summary of chainID was written out for
// articleID.
func (s *Store) MarkRecorded(ctx context.Context, articleID, chainID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if articleID == "" {
		return errors.New("article id is empty")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordedPrefix+articleID), []byte(chainID))
	})
}

// Recorded reports whether MarkRecorded was called for articleID.
func (s *Store) Recorded(ctx context.Context, articleID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(recordedPrefix + articleID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}
