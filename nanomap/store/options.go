package store

import (
	"log/slog"
	"time"
)

// Option configures a JSON file store
type Option func(*jsonFileStore)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fs FileSystem) Option {
	return func(s *jsonFileStore) {
		s.fs = fs
	}
}

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory FileLockFactory) Option {
	return func(s *jsonFileStore) {
		s.lockFactory = factory
	}
}

// WithTimeFunc sets a custom time function for testing
func WithTimeFunc(fn func() time.Time) Option {
	return func(s *jsonFileStore) {
		s.timeFunc = fn
	}
}

// WithIDFunc sets the generator for ids of documents inserted without one
func WithIDFunc(fn func() string) Option {
	return func(s *jsonFileStore) {
		s.idFunc = fn
	}
}

// WithLogger sets the logger used for store diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *jsonFileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}
