package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// Simulator satisfies Client without a bucket: local development and tests.
// Uploaded payload hashes are kept so tests can assert what was stored.
type Simulator struct {
	mu       sync.Mutex
	bucket   string
	endpoint string
	objects  map[string]string // key -> payload sha256
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
		objects:  make(map[string]string),
	}
}

func (s *Simulator) UploadThumbnail(_ context.Context, key string, data []byte, _ string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	sum := sha256.Sum256(data)

	s.mu.Lock()
	s.objects[key] = hex.EncodeToString(sum[:])
	s.mu.Unlock()

	ep := s.endpoint
	if ep == "" {
		ep = "https://r2.example.invalid"
	}
	bucket := s.bucket
	if bucket == "" {
		bucket = "theme-vault"
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(ep, "/"), bucket, key), nil
}

// StoredHash returns the sha256 of the payload stored under key, if any.
func (s *Simulator) StoredHash(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.objects[key]
	return h, ok
}
