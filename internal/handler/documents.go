package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
	"github.com/Shivanand-hulikatti/advisor-match/internal/service"
)

// SubmitDocument handles POST /documents
// Accepts either a multipart upload in the "file" field or a JSON body
// {"text": "..."}.
func (h *Handler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var req model.SubmitTextRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		doc, err := h.documents.SubmitText(ctx, userID(ctx), req.Text)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
		return
	}

	in, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.Submit(ctx, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// readUpload reads the multipart "file" field, bounded by maxUpload. It writes
// the error response itself and reports false on failure.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (service.SubmitInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return service.SubmitInput{}, false
		}
		writeError(w, http.StatusBadRequest, "missing file field: "+err.Error())
		return service.SubmitInput{}, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return service.SubmitInput{}, false
	}
	return service.SubmitInput{
		UserID:      userID(r.Context()),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, true
}

// ListDocuments handles GET /documents
// Returns the caller's documents, newest first.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.List(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}

// GetDocument handles GET /documents/{id}
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.Get(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetDocumentContent handles GET /documents/{id}/content
// Streams back the original upload.
func (h *Handler) GetDocumentContent(w http.ResponseWriter, r *http.Request) {
	doc, data, err := h.documents.Content(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ctype := mime.TypeByExtension(filepath.Ext(doc.Filename))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteDocument handles DELETE /documents/{id}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.documents.Delete(r.Context(), userID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Match handles POST /match
// Ranks profiles for a stored document or for ad-hoc text.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	var req model.MatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	views, err := h.matches.Match(r.Context(), userID(r.Context()), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": nonNil(views),
		"count":   len(views),
	})
}
