package reference

import (
	"context"
	"iter"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/arthur-debert/nanomap/nanomap/loader"
	"github.com/arthur-debert/nanomap/nanomap/mapping"
	"github.com/arthur-debert/nanomap/nanomap/query"
	"github.com/arthur-debert/nanomap/nanomap/typetag"
	"github.com/arthur-debert/nanomap/types"
)

type user struct {
	ID   string `doc:"_id"`
	Name string `doc:"name"`
}

var (
	userType    = reflect.TypeOf(user{})
	userPtrType = reflect.TypeOf(&user{})
	users       = types.ReferenceCollection{Collection: "users"}
)

// countingLoader serves docs from memory and counts calls. When gate is set,
// fetches signal entered and wait for gate to close.
type countingLoader struct {
	docs    []types.Document
	err     error
	gate    chan struct{}
	entered chan struct{}

	one  atomic.Int32
	many atomic.Int32

	mu      sync.Mutex
	queries []string
}

func (l *countingLoader) wait() {
	if l.gate == nil {
		return
	}
	select {
	case l.entered <- struct{}{}:
	default:
	}
	<-l.gate
}

func (l *countingLoader) record(q query.Query) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, q.String())
}

func (l *countingLoader) match(q query.Query) []types.Document {
	var out []types.Document
	for _, d := range l.docs {
		if ok, _ := q.Match(d); ok {
			out = append(out, d)
		}
	}
	return out
}

func (l *countingLoader) FetchOne(_ context.Context, q query.Query, _ types.ReferenceCollection) (types.Document, bool, error) {
	l.one.Add(1)
	l.record(q)
	l.wait()
	if l.err != nil {
		return nil, false, l.err
	}
	if docs := l.match(q); len(docs) > 0 {
		return docs[0], true, nil
	}
	return nil, false, nil
}

func (l *countingLoader) FetchMany(_ context.Context, q query.Query, _ types.ReferenceCollection) (*loader.Cursor, error) {
	l.many.Add(1)
	l.record(q)
	l.wait()
	if l.err != nil {
		return nil, l.err
	}
	return loader.Of(l.match(q)...), nil
}

func (l *countingLoader) calls() (int32, int32) {
	return l.one.Load(), l.many.Load()
}

func newReader() mapping.EntityReader {
	return mapping.NewDocumentReader(typetag.MustCodec())
}

func userDocs() []types.Document {
	return []types.Document{
		{"_id": "u1", "name": "ann"},
		{"_id": "u2", "name": "bo"},
		{"_id": "u3", "name": "cy"},
		{"_id": "id7", "name": "boss"},
	}
}

// memStore is a loader.DocumentStore over a fixed document list
type memStore struct {
	docs     []types.Document
	database string
}

func (s *memStore) FindOne(_ context.Context, q query.Query, database, _ string) (types.Document, bool, error) {
	for doc, err := range s.scan(q, database) {
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil
	}
	return nil, false, nil
}

func (s *memStore) FindMany(_ context.Context, q query.Query, database, _ string) (iter.Seq2[types.Document, error], error) {
	return s.scan(q, database), nil
}

func (s *memStore) scan(q query.Query, database string) iter.Seq2[types.Document, error] {
	s.database = database
	return func(yield func(types.Document, error) bool) {
		for _, d := range s.docs {
			ok, err := q.Match(d)
			if err != nil {
				yield(nil, err)
				return
			}
			if ok && !yield(d, nil) {
				return
			}
		}
	}
}
