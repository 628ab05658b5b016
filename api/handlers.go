package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/bassamadnan/rfimail/parser"
	"github.com/bassamadnan/rfimail/store"
	"github.com/go-chi/chi/v5"
	"google.golang.org/api/gmail/v1"
)

const (
	maxParseBody = 25 << 20
	defaultLimit = 50
	maxLimit     = 500
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parse turns one Gmail message (API JSON) into a record without storing it.
func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	var msg gmail.Message
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxParseBody))
	if err := dec.Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid message JSON: %v", err))
		return
	}

	parsed, err := s.deps.Parser.Parse(&msg)
	if err != nil {
		if parser.IsMalformedInput(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.deps.Logger.Error("Parse failed", "message", msg.Id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to parse message")
		return
	}
	writeJSON(w, http.StatusOK, parsed.Record())
}

type ingestResponse struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil || s.deps.Source == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}
	if !s.ingestMu.TryLock() {
		writeError(w, http.StatusConflict, "an ingest run is already in progress")
		return
	}
	defer s.ingestMu.Unlock()

	result, err := s.deps.Runner.Run(r.Context(), s.deps.Source)
	if err != nil {
		s.deps.Logger.Error("Ingest run failed", "source", s.deps.Source.Name(), "error", err)
		writeJSON(w, http.StatusBadGateway, ingestResponse{Result: result, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Result: result})
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	limit, _, ok := pagination(w, r)
	if !ok {
		return
	}
	runs, err := s.deps.Store.Runs(r.Context(), limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// pagination reads limit and offset. It writes a 400 and reports false on
// bad input.
func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, offset = defaultLimit, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return 0, 0, false
		}
		limit = min(n, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	records, err := s.deps.Store.ListMessages(r.Context(), store.MessageFilter{
		ThreadType: q.Get("thread_type"),
		JobName:    q.Get("job_name"),
		ThreadID:   q.Get("thread_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	if records == nil {
		records = []parser.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.deps.Store.ListThreads(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if threads == nil {
		threads = []store.Thread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) threadMessages(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	records, err := s.deps.Store.ListMessages(r.Context(), store.MessageFilter{ThreadID: threadID})
	if err != nil {
		s.storeError(w, err)
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Store.GetMessage(r.Context(), chi.URLParam(r, "threadID"), chi.URLParam(r, "messageID"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Attachments == nil {
		writeError(w, http.StatusNotImplemented, "attachment downloads are not available for this source")
		return
	}
	messageID, attachmentID := chi.URLParam(r, "messageID"), chi.URLParam(r, "attachmentID")
	rec, err := s.deps.Store.GetMessage(r.Context(), chi.URLParam(r, "threadID"), messageID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	var filename, mimeType string
	for _, a := range rec.Attachments {
		if a.AttachmentID == attachmentID {
			filename, mimeType = a.Filename, a.MimeType
			break
		}
	}
	if filename == "" {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}

	data, err := s.deps.Attachments.Attachment(r.Context(), messageID, attachmentID)
	if err != nil {
		s.deps.Logger.Error("Attachment download failed", "message", messageID, "attachment", attachmentID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to download attachment")
		return
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) vocabulary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Vocabulary == nil {
		writeError(w, http.StatusServiceUnavailable, "vocabulary is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Vocabulary.Vocabulary())
}

type settingsResponse struct {
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	PreferHTML          bool    `json:"preferHtml"`
	MaxDepth            int     `json:"maxDepth"`
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{
		ConfidenceThreshold: s.deps.Settings.ConfidenceThreshold,
		PreferHTML:          s.deps.Settings.PreferHTML,
		MaxDepth:            s.deps.Settings.MaxDepth,
	})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.deps.Logger.Error("Store query failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
