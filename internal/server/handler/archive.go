package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/predictlabs/marketd/internal/domain"
)

// handleArchivePrefix is where the daily exports live in the blob store.
const handleArchivePrefix = "archive/handles/"

// ArchiveHandler serves the daily handle exports for operator audit. Only
// registered when blob storage is configured.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given blob reader.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		logger: logHandler(logger, "archive"),
	}
}

type archiveEntry struct {
	Day          string `json:"day"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

// ListArchives returns the available daily exports, oldest first.
// GET /api/archives
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := h.blobs.List(r.Context(), handleArchivePrefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	entries := make([]archiveEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, archiveEntry{
			Day:          strings.TrimSuffix(path.Base(info.Path), ".jsonl"),
			Size:         info.Size,
			LastModified: info.LastModified.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"archives": entries})
}

// GetArchive streams one day's export as newline-delimited JSON.
// GET /api/archives/{day}  (day formatted 2006-01-02)
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	day := pathParam(r, "day")
	if _, err := time.Parse("2006-01-02", day); err != nil {
		writeError(w, http.StatusBadRequest, "day must be formatted YYYY-MM-DD")
		return
	}

	body, err := h.blobs.Get(r.Context(), handleArchivePrefix+day+".jsonl")
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no archive for "+day)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get archive failed",
			slog.String("day", day),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("day", day),
			slog.String("error", err.Error()),
		)
	}
}
