package storage

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanomap/types"
)

func TestLockManager(t *testing.T) {
	lm := NewLockManager()

	t.Run("ConcurrentReads", func(t *testing.T) {
		const readers = 8
		var inside atomic.Int32
		var peak atomic.Int32
		release := make(chan struct{})
		var wg sync.WaitGroup

		for i := 0; i < readers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = lm.Execute(ReadOperation, func() error {
					n := inside.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					<-release
					inside.Add(-1)
					return nil
				})
			}()
		}

		deadline := time.Now().Add(2 * time.Second)
		for peak.Load() < readers && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		close(release)
		wg.Wait()

		if peak.Load() != readers {
			t.Errorf("expected %d concurrent readers, peak was %d", readers, peak.Load())
		}
	})

	t.Run("WriteExcludesReads", func(t *testing.T) {
		writeStarted := make(chan struct{})
		releaseWrite := make(chan struct{})
		var readDuringWrite atomic.Bool
		var writing atomic.Bool

		go func() {
			_ = lm.Execute(WriteOperation, func() error {
				writing.Store(true)
				close(writeStarted)
				<-releaseWrite
				writing.Store(false)
				return nil
			})
		}()

		<-writeStarted
		done := make(chan struct{})
		go func() {
			_ = lm.Execute(ReadOperation, func() error {
				if writing.Load() {
					readDuringWrite.Store(true)
				}
				return nil
			})
			close(done)
		}()

		time.Sleep(20 * time.Millisecond)
		close(releaseWrite)
		<-done

		if readDuringWrite.Load() {
			t.Error("read ran while the write lock was held")
		}
	})

	t.Run("QueryReturnsResult", func(t *testing.T) {
		got, err := Query(lm, ReadOperation, func() (int, error) { return 42, nil })
		if err != nil || got != 42 {
			t.Errorf("expected 42, got %d (err=%v)", got, err)
		}

		boom := errors.New("boom")
		_, err = Query(lm, WriteOperation, func() (string, error) { return "", boom })
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
}

func TestStoreDataCollections(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := NewStoreData(now)

	if got := data.Collection("main", "users"); got != nil {
		t.Errorf("expected nil for missing collection, got %v", got)
	}

	docs := []types.Document{{"_id": "1"}}
	data.SetCollection("main", "users", docs)
	if diff := cmp.Diff(docs, data.Collection("main", "users")); diff != "" {
		t.Errorf("collection mismatch (-want +got):\n%s", diff)
	}

	var empty StoreData
	empty.SetCollection("hr", "people", nil)
	if _, ok := empty.Databases["hr"]["people"]; !ok {
		t.Error("SetCollection must create missing databases")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded StoreData
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Metadata.Version != FormatVersion || !decoded.Metadata.CreatedAt.Equal(now) {
		t.Errorf("unexpected metadata: %+v", decoded.Metadata)
	}
}
