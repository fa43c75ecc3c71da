package indexstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/juanmh10/RAG-AWS/internal/blob"
	"github.com/juanmh10/RAG-AWS/internal/rag"
)

var (
	// ErrIndexNotFound means one or both artifacts are missing for the session.
	ErrIndexNotFound = errors.New("indexstore: index not found")
	// ErrIndexCorrupt means the artifacts exist but cannot be decoded.
	ErrIndexCorrupt = errors.New("indexstore: index corrupt")
)

const (
	vectorsName = "index.vec"
	metaName    = "index.json"
)

// Store persists a session's vector index as a pair of companion objects in
// the blob store. The pair is only meaningful together; Load refuses a
// partial pair.
type Store struct {
	blobs blob.Store
	log   *zap.Logger
}

func New(blobs blob.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{blobs: blobs, log: log}
}

// Blobs exposes the underlying store, for callers that manage the artifact
// objects directly (session purge).
func (s *Store) Blobs() blob.Store {
	return s.blobs
}

// Keys returns the artifact pair keys for a session.
func Keys(sessionID string) (vectors, meta string) {
	return sessionID + "/" + vectorsName, sessionID + "/" + metaName
}

// Save serializes the index into a scratch directory first and uploads the
// finished artifacts from there, so a crash mid-serialization can never leave
// a half-written object in the durable store.
func (s *Store) Save(ctx context.Context, sessionID string, ix *rag.Index) error {
	scratch, err := os.MkdirTemp("", "ragindex-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	vecData, err := ix.MarshalVectors()
	if err != nil {
		return fmt.Errorf("serialize vectors: %w", err)
	}
	metaData, err := ix.MarshalMeta()
	if err != nil {
		return fmt.Errorf("serialize metadata: %w", err)
	}
	for name, data := range map[string][]byte{vectorsName: vecData, metaName: metaData} {
		if err := os.WriteFile(filepath.Join(scratch, name), data, 0o600); err != nil {
			return fmt.Errorf("write scratch %s: %w", name, err)
		}
	}

	vecKey, metaKey := Keys(sessionID)
	for key, name := range map[string]string{vecKey: vectorsName, metaKey: metaName} {
		data, err := os.ReadFile(filepath.Join(scratch, name))
		if err != nil {
			return fmt.Errorf("read scratch %s: %w", name, err)
		}
		if err := s.blobs.Put(ctx, key, data); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}
	s.log.Info("index saved",
		zap.String("session_id", sessionID),
		zap.Int("segments", ix.Len()),
		zap.Int("dimension", ix.Dimension()))
	return nil
}

// Load downloads both artifacts and reconstructs the index. The embedder for
// querying is bound by the caller and must match the one used at build time;
// the store cannot verify that contract.
func (s *Store) Load(ctx context.Context, sessionID string) (*rag.Index, error) {
	vecKey, metaKey := Keys(sessionID)
	vecData, err := s.blobs.Get(ctx, vecKey)
	if err != nil {
		return nil, missingOr(err, vecKey)
	}
	metaData, err := s.blobs.Get(ctx, metaKey)
	if err != nil {
		return nil, missingOr(err, metaKey)
	}
	ix, err := rag.DecodeIndex(vecData, metaData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	return ix, nil
}

func missingOr(err error, key string) error {
	if errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, key)
	}
	return fmt.Errorf("download %s: %w", key, err)
}
