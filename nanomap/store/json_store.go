package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/arthur-debert/nanomap/nanomap/query"
	"github.com/arthur-debert/nanomap/nanomap/storage"
	"github.com/arthur-debert/nanomap/types"
)

// jsonFileStore implements Store using a JSON file backend
type jsonFileStore struct {
	filePath    string
	lockManager *storage.LockManager
	logger      *slog.Logger

	fs          FileSystem
	lockFactory FileLockFactory
	fileLock    FileLock // Cross-process file locking

	data     *storage.StoreData
	timeFunc func() time.Time
	idFunc   func() string
	closed   bool
}

// Constants for file locking
const (
	lockTimeout    = 3 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

func newJSONFileStore(filePath string, opts ...Option) (*jsonFileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("%w: store path is required", types.ErrInvalidArgument)
	}

	s := &jsonFileStore{
		filePath:    filePath,
		lockManager: storage.NewLockManager(),
		logger:      slog.Default(),
		timeFunc:    time.Now,
		idFunc:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fs == nil {
		s.fs = OSFileSystem{}
	}
	if s.lockFactory == nil {
		s.lockFactory = FlockFactory{}
	}
	s.data = storage.NewStoreData(s.timeFunc())
	s.fileLock = s.lockFactory.New(filePath + ".lock")

	if err := s.withFileLock(s.load); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	s.logger.Debug("store opened", "path", filePath, "databases", len(s.data.Databases))
	return s, nil
}

// acquireLock attempts to acquire an exclusive file lock with retry logic
func (s *jsonFileStore) acquireLock(ctx context.Context) error {
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return fmt.Errorf("failed to acquire lock after %d attempts", lockMaxRetries)
}

// withFileLock runs fn while holding the cross-process lock
func (s *jsonFileStore) withFileLock(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer func() { _ = s.fileLock.Unlock() }()

	return fn()
}

// load reads the JSON file into memory. Caller holds the file lock.
func (s *jsonFileStore) load() error {
	if _, err := s.fs.Stat(s.filePath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	data, err := s.fs.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var storeData storage.StoreData
	if err := json.Unmarshal(data, &storeData); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	if storeData.Databases == nil {
		storeData.Databases = make(map[string]map[string][]types.Document)
	}
	s.data = &storeData
	return nil
}

// save writes the in-memory data atomically (temp file, then rename).
// Caller holds the file lock.
func (s *jsonFileStore) save() error {
	s.data.Metadata.UpdatedAt = s.timeFunc()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := s.fs.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := s.fs.Rename(tmpFile, s.filePath); err != nil {
		_ = s.fs.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func (s *jsonFileStore) checkOpen(ctx context.Context) error {
	if s.closed {
		return errors.New("store is closed")
	}
	return ctx.Err()
}

func validateLocation(database, collection string) (string, error) {
	if collection == "" {
		return "", fmt.Errorf("%w: collection name is required", types.ErrInvalidArgument)
	}
	if database == "" {
		database = DefaultDatabase
	}
	return database, nil
}

// Insert implements Store.Insert
func (s *jsonFileStore) Insert(ctx context.Context, database, collection string, doc types.Document) (string, error) {
	database, err := validateLocation(database, collection)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", fmt.Errorf("%w: nil document", types.ErrInvalidArgument)
	}

	return storage.Query(s.lockManager, storage.WriteOperation, func() (string, error) {
		if err := s.checkOpen(ctx); err != nil {
			return "", err
		}

		stored := doc.Clone()
		id := stored.IDString()
		if id == "" {
			id = s.idFunc()
			stored[types.IDField] = id
		}

		docs := s.data.Collection(database, collection)
		for _, existing := range docs {
			if existing.IDString() == id {
				return "", fmt.Errorf("%w: duplicate id %q in %s.%s", types.ErrInvalidArgument, id, database, collection)
			}
		}

		updated := make([]types.Document, len(docs), len(docs)+1)
		copy(updated, docs)
		updated = append(updated, stored)
		previous := docs
		s.data.SetCollection(database, collection, updated)

		if err := s.withFileLock(s.save); err != nil {
			s.data.SetCollection(database, collection, previous)
			return "", err
		}

		s.logger.Debug("document inserted", "database", database, "collection", collection, "id", id)
		return id, nil
	})
}

// Get implements Store.Get
func (s *jsonFileStore) Get(ctx context.Context, database, collection, id string) (types.Document, error) {
	doc, found, err := s.FindOne(ctx, query.ByID(id), database, collection)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s in %s.%s", types.ErrNotFound, id, database, collection)
	}
	return doc, nil
}

// snapshot copies the slice of documents in a collection under the read lock.
// Stored documents are never mutated in place, so sharing them is safe.
func (s *jsonFileStore) snapshot(ctx context.Context, database, collection string) ([]types.Document, error) {
	database, err := validateLocation(database, collection)
	if err != nil {
		return nil, err
	}
	return storage.Query(s.lockManager, storage.ReadOperation, func() ([]types.Document, error) {
		if err := s.checkOpen(ctx); err != nil {
			return nil, err
		}
		docs := s.data.Collection(database, collection)
		out := make([]types.Document, len(docs))
		copy(out, docs)
		return out, nil
	})
}

// FindOne implements Store.FindOne
func (s *jsonFileStore) FindOne(ctx context.Context, q query.Query, database, collection string) (types.Document, bool, error) {
	docs, err := s.snapshot(ctx, database, collection)
	if err != nil {
		return nil, false, err
	}
	for _, doc := range docs {
		ok, err := q.Match(doc)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return doc.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// FindMany implements Store.FindMany.
// Matching happens as the sequence is consumed, against a snapshot taken now.
func (s *jsonFileStore) FindMany(ctx context.Context, q query.Query, database, collection string) (iter.Seq2[types.Document, error], error) {
	docs, err := s.snapshot(ctx, database, collection)
	if err != nil {
		return nil, err
	}
	return func(yield func(types.Document, error) bool) {
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			ok, err := q.Match(doc)
			if err != nil {
				yield(nil, err)
				return
			}
			if ok && !yield(doc.Clone(), nil) {
				return
			}
		}
	}, nil
}

// Delete implements Store.Delete
func (s *jsonFileStore) Delete(ctx context.Context, database, collection, id string) error {
	database, err := validateLocation(database, collection)
	if err != nil {
		return err
	}
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		if err := s.checkOpen(ctx); err != nil {
			return err
		}
		docs := s.data.Collection(database, collection)
		kept := make([]types.Document, 0, len(docs))
		for _, doc := range docs {
			if doc.IDString() != id {
				kept = append(kept, doc)
			}
		}
		if len(kept) == len(docs) {
			return fmt.Errorf("%w: %s in %s.%s", types.ErrNotFound, id, database, collection)
		}

		s.data.SetCollection(database, collection, kept)
		if err := s.withFileLock(s.save); err != nil {
			s.data.SetCollection(database, collection, docs)
			return err
		}
		return nil
	})
}

// Collections implements Store.Collections
func (s *jsonFileStore) Collections(database string) []string {
	if database == "" {
		database = DefaultDatabase
	}
	names, _ := storage.Query(s.lockManager, storage.ReadOperation, func() ([]string, error) {
		colls := s.data.Databases[database]
		names := make([]string, 0, len(colls))
		for name := range colls {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	})
	return names
}

// Close implements Store.Close
func (s *jsonFileStore) Close() error {
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		s.closed = true
		return nil
	})
}
