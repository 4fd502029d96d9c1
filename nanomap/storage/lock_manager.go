package storage

import (
	"sync"
)

// OperationType defines whether an operation is read or write.
type OperationType int

const (
	// ReadOperation indicates an operation that only reads data.
	// Multiple read operations can proceed concurrently.
	ReadOperation OperationType = iota

	// WriteOperation indicates an operation that modifies data and
	// excludes every other read and write.
	WriteOperation
)

// LockManager centralises the read/write locking of a store so every
// operation takes the right lock and releases it on return.
type LockManager struct {
	mu sync.RWMutex
}

// NewLockManager creates a new lock manager instance.
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Execute runs fn holding a read lock or the write lock, depending on opType.
//
// Example:
//
//	err := lockManager.Execute(ReadOperation, func() error {
//	    // Safe to read data here
//	    return nil
//	})
func (lm *LockManager) Execute(opType OperationType, fn func() error) error {
	switch opType {
	case ReadOperation:
		lm.mu.RLock()
		defer lm.mu.RUnlock()
	case WriteOperation:
		lm.mu.Lock()
		defer lm.mu.Unlock()
	}
	return fn()
}

// Query runs fn under the lock selected by opType and returns its result.
func Query[T any](lm *LockManager, opType OperationType, fn func() (T, error)) (T, error) {
	var out T
	err := lm.Execute(opType, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
