package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/predictlabs/marketd/internal/domain"
)

// HandleArchiveStore provides read access to terminal handles for archival.
// The archiver only needs this one query, not the full journal interface;
// the Postgres store satisfies it with a time-ranged query.
type HandleArchiveStore interface {
	// ListTerminalOn returns every settled or failed handle whose terminal
	// timestamp falls on the given UTC day.
	ListTerminalOn(ctx context.Context, day time.Time) ([]domain.TransactionHandle, error)
}

// existsChecker is the slice of the blob reader the archiver uses to keep
// uploads idempotent.
type existsChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// uploader is the write surface the archiver needs: single-shot puts for
// normal days and multipart for exports too large for one request.
type uploader interface {
	domain.BlobWriter
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// multipartThreshold is the export size above which the archiver switches to
// a multipart upload.
const multipartThreshold = 32 << 20

// Archiver implements domain.Archiver by exporting one JSONL file per UTC
// day of terminal handles. Handles are never deleted from the journal here;
// dismissal stays an explicit user action.
type Archiver struct {
	writer  uploader
	exists  existsChecker
	journal HandleArchiveStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer uploader, exists existsChecker, journal HandleArchiveStore) *Archiver {
	return &Archiver{
		writer:  writer,
		exists:  exists,
		journal: journal,
	}
}

// ArchiveSettled exports all handles that reached a terminal state on the
// given UTC day to archive/handles/YYYY-MM-DD.jsonl and returns the record
// count. A day that was already archived is skipped.
func (a *Archiver) ArchiveSettled(ctx context.Context, day time.Time) (int, error) {
	path := archivePath(day)

	present, err := a.exists.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive handles check %s: %w", path, err)
	}
	if present {
		return 0, nil
	}

	handles, err := a.journal.ListTerminalOn(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive handles query: %w", err)
	}
	if len(handles) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(handles)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive handles marshal: %w", err)
	}

	if len(buf) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive handles upload: %w", err)
	}
	return len(handles), nil
}

// archivePath builds the S3 key for one day's export.
//
//	archive/handles/2026-08-27.jsonl
func archivePath(day time.Time) string {
	return fmt.Sprintf("archive/handles/%s.jsonl", day.UTC().Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
