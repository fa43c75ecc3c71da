package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/juanmh10/RAG-AWS/internal/blob"
)

// Session status values. The cycle is absent -> uploaded -> (ready | error);
// ready and error are terminal until the next upload starts a new cycle.
const (
	StatusUploaded = "uploaded"
	StatusReady    = "ready"
	StatusError    = "error"
)

const statusName = "status.json"

// Record is the durable per-session status. One record per session; every
// write fully replaces the previous one.
type Record struct {
	Status   string `json:"status"`
	TS       int64  `json:"ts"`
	Filename string `json:"filename,omitempty"`
	PDFKey   string `json:"pdf_key,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Fields carries the optional extras attached to a status write.
type Fields struct {
	Filename string
	PDFKey   string
	Message  string
}

// Ledger reads and writes session status records in the blob store.
type Ledger struct {
	blobs blob.Store
	now   func() time.Time
}

func New(blobs blob.Store) *Ledger {
	return &Ledger{blobs: blobs, now: time.Now}
}

// Key returns the status object key for a session.
func Key(sessionID string) string {
	return sessionID + "/" + statusName
}

// Write overwrites the session's status record. Callers treat a returned
// error as a warning: the ledger is telemetry, not a gate for the operation
// that triggered the write.
func (l *Ledger) Write(ctx context.Context, sessionID, status string, extra Fields) error {
	rec := Record{
		Status:   status,
		TS:       l.now().Unix(),
		Filename: extra.Filename,
		PDFKey:   extra.PDFKey,
		Message:  extra.Message,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := l.blobs.Put(ctx, Key(sessionID), data); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

// Read returns the current record, or (nil, nil) when the session has no
// record yet. Absence is meaningful: nothing has been uploaded.
func (l *Ledger) Read(ctx context.Context, sessionID string) (*Record, error) {
	data, err := l.blobs.Get(ctx, Key(sessionID))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &rec, nil
}
