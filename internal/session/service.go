package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juanmh10/RAG-AWS/internal/ai"
	"github.com/juanmh10/RAG-AWS/internal/blob"
	"github.com/juanmh10/RAG-AWS/internal/indexstore"
	"github.com/juanmh10/RAG-AWS/internal/ledger"
	"github.com/juanmh10/RAG-AWS/internal/quota"
	"github.com/juanmh10/RAG-AWS/internal/rag"
	"github.com/juanmh10/RAG-AWS/internal/worker"
)

// DocExtractor is the extraction chain interface the service depends on.
type DocExtractor interface {
	Extract(ctx context.Context, data []byte) ([]string, error)
}

// Options bundles the chunking and retrieval knobs.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// Service implements the per-session document QA flow: upload and index a
// document, answer questions over it, purge everything on demand. All
// mutating operations for a session run through the worker manager, so they
// are strictly serialized per session.
type Service struct {
	docs      blob.Store
	indexes   *indexstore.Store
	ledger    *ledger.Ledger
	quota     *quota.Tracker
	extractor DocExtractor
	embedder  rag.Embedder
	completer ai.Completer
	workers   *worker.Manager
	opts      Options
	log       *zap.Logger
}

func NewService(
	docs blob.Store,
	indexes *indexstore.Store,
	led *ledger.Ledger,
	tracker *quota.Tracker,
	extractor DocExtractor,
	embedder rag.Embedder,
	completer ai.Completer,
	workers *worker.Manager,
	opts Options,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		docs:      docs,
		indexes:   indexes,
		ledger:    led,
		quota:     tracker,
		extractor: extractor,
		embedder:  embedder,
		completer: completer,
		workers:   workers,
		opts:      opts,
		log:       log,
	}
}

// Upload stores the document, extracts and chunks its text, builds the
// vector index and persists it. The session's status record tracks progress;
// on any failure it lands on "error" with a message.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, data []byte) error {
	return s.workers.Run(ctx, sessionID, func(ctx context.Context) error {
		return s.doUpload(ctx, sessionID, filename, data)
	})
}

func (s *Service) doUpload(ctx context.Context, sessionID, filename string, data []byte) error {
	s.writeStatus(ctx, sessionID, ledger.StatusUploaded, ledger.Fields{Filename: filename})

	err := s.indexDocument(ctx, sessionID, filename, data)
	if err != nil {
		s.writeStatus(ctx, sessionID, ledger.StatusError, ledger.Fields{Message: err.Error()})
		return err
	}
	return nil
}

func (s *Service) indexDocument(ctx context.Context, sessionID, filename string, data []byte) error {
	docKey := sessionID + "/" + uuid.NewString() + "-" + sanitizeFilename(filename)
	if err := s.docs.Put(ctx, docKey, data); err != nil {
		return fmt.Errorf("store document: %w", err)
	}

	pages, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	segments := rag.ChunkPages(pages, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if len(segments) == 0 {
		return ErrNoText
	}

	ix, err := rag.BuildIndex(ctx, s.embedder, segments)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := s.indexes.Save(ctx, sessionID, ix); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	s.writeStatus(ctx, sessionID, ledger.StatusReady, ledger.Fields{Filename: filename, PDFKey: docKey})
	s.log.Info("document indexed",
		zap.String("session_id", sessionID),
		zap.String("doc_key", docKey),
		zap.Int("segments", len(segments)))
	return nil
}

// Status returns the session's current status record, or nil when the
// session has never uploaded anything.
func (s *Service) Status(ctx context.Context, sessionID string) (*ledger.Record, error) {
	return s.ledger.Read(ctx, sessionID)
}

// Answer retrieves the top segments for the question and asks the chat model,
// constrained to that context. The quota is checked before answering and
// charged after, so the exchange that crosses the ceiling still completes.
func (s *Service) Answer(ctx context.Context, sessionID, question string) (string, error) {
	var answer string
	err := s.workers.Run(ctx, sessionID, func(ctx context.Context) error {
		var err error
		answer, err = s.doAnswer(ctx, sessionID, question)
		return err
	})
	return answer, err
}

func (s *Service) doAnswer(ctx context.Context, sessionID, question string) (string, error) {
	rec, err := s.ledger.Read(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("read status: %w", err)
	}
	if rec == nil || rec.Status != ledger.StatusReady {
		return "", ErrIndexNotReady
	}

	over, err := s.quota.Exceeded(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("check quota: %w", err)
	}
	if over {
		// The session is done; release its storage right away.
		if err := s.doPurge(ctx, sessionID); err != nil {
			s.log.Warn("purge after quota failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		return "", ErrQuotaExceeded
	}

	ix, err := s.indexes.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, indexstore.ErrIndexNotFound) || errors.Is(err, indexstore.ErrIndexCorrupt) {
			return "", fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		return "", fmt.Errorf("load index: %w", err)
	}

	qvec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	results := ix.Search(qvec, s.opts.TopK)
	segments := make([]string, 0, len(results))
	for _, r := range results {
		segments = append(segments, r.Text)
	}

	answer, err := s.completer.Generate(ctx, ai.QAMessages(segments, question))
	if err != nil {
		return "", err
	}

	if err := s.quota.Record(ctx, sessionID, question, answer); err != nil {
		s.log.Warn("record usage failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	return answer, nil
}

// Purge deletes everything stored for the session: the raw documents, the
// index artifacts, the status record and the usage counter. Purging an
// unknown session is a no-op.
func (s *Service) Purge(ctx context.Context, sessionID string) error {
	return s.workers.Run(ctx, sessionID, func(ctx context.Context) error {
		return s.doPurge(ctx, sessionID)
	})
}

func (s *Service) doPurge(ctx context.Context, sessionID string) error {
	prefix := sessionID + "/"
	var failed int
	for _, store := range []blob.Store{s.docs, s.indexes.Blobs()} {
		keys, err := store.List(ctx, prefix)
		if err != nil {
			s.log.Warn("list for purge failed",
				zap.String("session_id", sessionID), zap.Error(err))
			failed++
			continue
		}
		for _, key := range keys {
			if err := store.Delete(ctx, key); err != nil {
				s.log.Warn("delete failed",
					zap.String("key", key), zap.Error(err))
				failed++
			}
		}
	}
	if err := s.quota.Reset(ctx, sessionID); err != nil {
		s.log.Warn("quota reset failed",
			zap.String("session_id", sessionID), zap.Error(err))
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("purge session %s: %d objects could not be removed", sessionID, failed)
	}
	return nil
}

// writeStatus is best effort. Losing a status write degrades visibility, it
// must not fail the operation that triggered it.
func (s *Service) writeStatus(ctx context.Context, sessionID, status string, extra ledger.Fields) {
	if err := s.ledger.Write(ctx, sessionID, status, extra); err != nil {
		s.log.Warn("status write failed",
			zap.String("session_id", sessionID),
			zap.String("status", status),
			zap.Error(err))
	}
}

// sanitizeFilename keeps the stored object key predictable regardless of what
// the browser sends. Path separators and shell-hostile characters collapse
// to underscores.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
