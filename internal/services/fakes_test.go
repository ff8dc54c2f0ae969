package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Lllllllleong/processresults/internal/gcp"
	"github.com/Lllllllleong/processresults/internal/models"
	"github.com/stretchr/testify/require"
)

const testBucket = "working-bucket"

// Compile-time checks: the production collaborators satisfy the interfaces.
var (
	_ BlobStore       = (*gcp.GCSBlobStore)(nil)
	_ DocumentTracker = (*gcp.FirestoreTracker)(nil)
)

type storedObject struct {
	content     []byte
	contentType string
}

// memStore is an in-memory BlobStore keyed by "bucket/key".
type memStore struct {
	mu        sync.Mutex
	objects   map[string]storedObject
	readErrs  map[string]error
	writeErrs map[string]error
	writes    []string
}

func newMemStore() *memStore {
	return &memStore{
		objects:   map[string]storedObject{},
		readErrs:  map[string]error{},
		writeErrs: map[string]error{},
	}
}

func (s *memStore) Read(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := bucket + "/" + key
	if err, ok := s.readErrs[path]; ok {
		return nil, err
	}
	obj, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("gs://%s: %w", path, gcp.ErrObjectNotFound)
	}
	return obj.content, nil
}

func (s *memStore) Write(_ context.Context, bucket, key string, content []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := bucket + "/" + key
	if err, ok := s.writeErrs[path]; ok {
		return err
	}
	s.objects[path] = storedObject{content: append([]byte(nil), content...), contentType: contentType}
	s.writes = append(s.writes, path)
	return nil
}

func (s *memStore) WriteIfAbsent(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	s.mu.Lock()
	_, exists := s.objects[bucket+"/"+key]
	s.mu.Unlock()
	if exists {
		return nil
	}
	return s.Write(ctx, bucket, key, content, contentType)
}

func (s *memStore) put(t *testing.T, bucket, key string, v interface{}) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	s.objects[bucket+"/"+key] = storedObject{content: b, contentType: "application/json"}
}

func (s *memStore) keysWithSuffix(suffix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasSuffix(k, suffix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *memStore) sidecar(t *testing.T, path string) SidecarMetadata {
	t.Helper()
	obj, ok := s.objects[path]
	require.True(t, ok, "sidecar %s was not written", path)
	var m SidecarMetadata
	require.NoError(t, json.Unmarshal(obj.content, &m))
	return m
}

type trackerCall struct {
	status       models.Status
	sectionCount int
}

// recordingTracker remembers a snapshot of every update it receives.
type recordingTracker struct {
	calls  []trackerCall
	err    error
	failAt int // 1-based call number that returns err; 0 fails every call when err is set
}

func (r *recordingTracker) UpdateDocument(_ context.Context, doc *models.Document) error {
	r.calls = append(r.calls, trackerCall{status: doc.Status, sectionCount: len(doc.Sections)})
	if r.err != nil && (r.failAt == 0 || r.failAt == len(r.calls)) {
		return r.err
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func inlineRef(t *testing.T, doc *models.Document) models.DocumentReference {
	t.Helper()
	ref, err := models.NewInlineReference(doc)
	require.NoError(t, err)
	return ref
}

func offloadedRef(t *testing.T, store *memStore, key string, doc *models.Document) models.DocumentReference {
	t.Helper()
	store.put(t, testBucket, key, doc)
	ref, err := models.NewPointerReference(models.PayloadPointer{GCSUri: gcp.GCSURI(testBucket, key), DocumentID: doc.ID})
	require.NoError(t, err)
	return ref
}

func fragment(id, classification, extractionURI string, metering models.Metering) *models.Document {
	return &models.Document{
		ID: id,
		Sections: []models.Section{{
			SectionID:           id,
			Classification:      classification,
			ExtractionResultURI: extractionURI,
		}},
		Metering: metering,
	}
}
