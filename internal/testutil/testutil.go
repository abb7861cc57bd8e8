// Package testutil provides shared test doubles and fixtures.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"flatnest/internal/imagestore"
)

// ImageStoreStub is an in-memory imagestore.Client recording every upload and
// delete. Safe for concurrent use.
type ImageStoreStub struct {
	mu      sync.Mutex
	Uploads map[string][]byte
	Deletes []string

	// UploadErr and DeleteErr, when set, are returned by the respective calls.
	UploadErr error
	DeleteErr error
}

// NewImageStoreStub creates an empty stub store.
func NewImageStoreStub() *ImageStoreStub {
	return &ImageStoreStub{Uploads: make(map[string][]byte)}
}

// Upload records the payload under publicID.
func (s *ImageStoreStub) Upload(_ context.Context, data []byte, publicID string) (*imagestore.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UploadErr != nil {
		return nil, s.UploadErr
	}
	s.Uploads[publicID] = data
	return &imagestore.UploadResult{
		URL:      fmt.Sprintf("https://store.test/%s.webp", publicID),
		PublicID: publicID,
		Bytes:    int64(len(data)),
	}, nil
}

// Delete records the release of publicID.
func (s *ImageStoreStub) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.Deletes = append(s.Deletes, publicID)
	delete(s.Uploads, publicID)
	return nil
}

// Deleted reports whether publicID was released.
func (s *ImageStoreStub) Deleted(publicID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.Deletes {
		if id == publicID {
			return true
		}
	}
	return false
}

// UploadCount returns the number of stored assets.
func (s *ImageStoreStub) UploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Uploads)
}

// MailerStub records password reset mails instead of sending them.
type MailerStub struct {
	mu    sync.Mutex
	Sent  []string // recipient addresses
	Token string   // last token
	Err   error
}

// SendPasswordReset records the call.
func (m *MailerStub) SendPasswordReset(to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, to)
	m.Token = token
	return nil
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
