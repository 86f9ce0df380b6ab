package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pdfmulti "github.com/alnah/go-pdfmulti"
	"github.com/alnah/go-pdfmulti/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	content, ok := s.readBody(w, r)
	if !ok {
		return
	}

	id := uuid.NewString()
	if err := s.store.Put(r.Context(), id, content); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// loadContent reads the stored content of id. Content that is gone, deleted
// or expired by the store, also ends the live session kept for id.
func (s *Server) loadContent(ctx context.Context, id string) (string, error) {
	content, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.dropSession(id)
	}
	return content, err
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.loadContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, content)
}

func (s *Server) handlePutContent(w http.ResponseWriter, r *http.Request) {
	content, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := s.store.Put(r.Context(), chi.URLParam(r, "id"), content); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.dropSession(id)
	w.WriteHeader(http.StatusNoContent)
}

type previewData struct {
	ID         string
	Title      string
	FileName   string
	Content    string
	HasContent bool
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := s.loadContent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := pdfmulti.DeriveOutput(content)
	data := previewData{
		ID:         id,
		Title:      pdfmulti.DeriveFileName(content),
		FileName:   out.FileName,
		Content:    content,
		HasContent: content != "",
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := previewTmpl.Execute(w, data); err != nil {
		s.logger.Error("rendering preview", "session", id, "error", err)
	}
}

// handleDownload converts the stored content of a session and returns it as
// an attachment. Empty content answers 204 and produces nothing.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := s.loadContent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sess := s.session(id)
	sess.Update(content)

	start := time.Now()
	result, err := sess.Trigger(r.Context())
	if result == nil && err == nil {
		s.observe(start, nil, pdfmulti.ErrEmptyContent)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.observe(start, result, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writePDF(w, result)
}

// handleConvert converts the request body. Identical bodies arriving while a
// conversion is running share its result.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	content, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if content == "" {
		s.fail(w, r, pdfmulti.ErrEmptyContent)
		return
	}

	sum := sha256.Sum256([]byte(content))
	key := hex.EncodeToString(sum[:])

	start := time.Now()
	v, err, shared := s.convertGroup.Do(key, func() (any, error) {
		ctx, cancel := s.convertContext(r.Context())
		defer cancel()
		return s.conv.Convert(ctx, pdfmulti.Input{HTML: content})
	})
	result, _ := v.(*pdfmulti.Result)
	s.observe(start, result, err)
	if shared {
		s.logger.Debug("shared conversion", "key", key[:12])
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writePDF(w, result)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return "", false
		}
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return "", false
	}
	return string(body), true
}

// fail maps err to a status code and writes it as JSON.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pdfmulti.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, pdfmulti.ErrClosed):
		return http.StatusGone
	case errors.Is(err, pdfmulti.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, pdfmulti.ErrAssetLoad), errors.Is(err, pdfmulti.ErrStage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, pdfmulti.ErrRender):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writePDF(w http.ResponseWriter, result *pdfmulti.Result) {
	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": result.Output.FileName}))
	h.Set("Content-Length", strconv.Itoa(len(result.PDF)))
	h.Set("X-PDF-Pages", strconv.Itoa(result.Pages))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.PDF)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
