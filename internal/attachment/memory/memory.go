package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"docdesk/internal/attachment"
	"docdesk/pkg/platform/sentinel"
)

type blob struct {
	data        []byte
	contentType string
}

// InMemoryStore keeps attachments in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

func New() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string]blob)}
}

func (s *InMemoryStore) Put(ctx context.Context, u attachment.Upload) (string, error) {
	data, err := io.ReadAll(io.LimitReader(u.Body, attachment.MaxSize+1))
	if err != nil {
		return "", err
	}
	key := attachment.NewKey(u.ContentType)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob{data: data, contentType: attachment.NormalizeContentType(u.ContentType)}
	return key, nil
}

func (s *InMemoryStore) Open(_ context.Context, ref string) (*attachment.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &attachment.Object{
		Body:        io.NopCloser(bytes.NewReader(b.data)),
		Size:        int64(len(b.data)),
		ContentType: b.contentType,
	}, nil
}

// Delete removes ref. Deleting a missing ref is not an error.
func (s *InMemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}

// Len reports how many attachments are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
