// Package blobstore stores uploaded binary assets (lab logos) and resolves
// them to public URLs. FileStore writes under a local directory that the
// HTTP server exposes as static content; MemoryStore serves tests.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidKey         = errors.New("invalid blob key")
)

// ImageTypes maps the accepted image MIME types to their file extension.
var ImageTypes = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is the contract shared by storage backends. Keys are slash
// separated relative paths such as "acme/logo-<uuid>.png".
type Store interface {
	Put(ctx context.Context, key, contentType string, content io.Reader) (*Object, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// DetectImageType sniffs the first bytes of an upload and returns the
// accepted MIME type, or ErrInvalidContentType. SVG is recognised by its
// root element since sniffing reports it as text.
func DetectImageType(head []byte, declared string) (string, error) {
	sniffed := http.DetectContentType(head)
	if _, ok := ImageTypes[sniffed]; ok {
		return sniffed, nil
	}
	if declared == "image/svg+xml" || strings.HasPrefix(sniffed, "text/") {
		if bytes.Contains(bytes.ToLower(head), []byte("<svg")) {
			return "image/svg+xml", nil
		}
	}
	return "", ErrInvalidContentType
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	return path.Clean(key) == key && !strings.HasPrefix(key, "..")
}

// readLimited reads content fully, failing with ErrFileTooLarge past max
// bytes. A max of 0 disables the limit.
func readLimited(content io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(content)
	}
	data, err := io.ReadAll(io.LimitReader(content, max+1))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if int64(len(data)) > max {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func newObject(key, url, contentType string, data []byte) *Object {
	sum := sha256.Sum256(data)
	return &Object{
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now().UTC(),
	}
}

// FileStore keeps blobs under root and serves them below baseURL.
type FileStore struct {
	root    string
	baseURL string
	maxSize int64
}

func NewFileStore(root, baseURL string, maxSize int64) *FileStore {
	return &FileStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/"), maxSize: maxSize}
}

func (s *FileStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// Put writes the blob through a temporary file and renames it into place so
// readers never observe a partial upload.
func (s *FileStore) Put(_ context.Context, key, contentType string, content io.Reader) (*Object, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	data, err := readLimited(content, s.maxSize)
	if err != nil {
		return nil, err
	}

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, fmt.Errorf("chmod blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	return newObject(key, s.URL(key), contentType, data), nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return ErrBlobNotFound
	}
	return err
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	maxSize int64
}

func NewMemoryStore(maxSize int64) *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte), maxSize: maxSize}
}

func (s *MemoryStore) URL(key string) string { return "/uploads/" + key }

func (s *MemoryStore) Put(_ context.Context, key, contentType string, content io.Reader) (*Object, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	data, err := readLimited(content, s.maxSize)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return newObject(key, s.URL(key), contentType, data), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// Get returns a copy of a stored blob.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}
