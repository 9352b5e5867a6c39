package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/advisor-match/internal/embedding"
	"github.com/Shivanand-hulikatti/advisor-match/internal/extract"
	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
	"github.com/Shivanand-hulikatti/advisor-match/internal/storage"
)

// SubmitInput is an uploaded file.
type SubmitInput struct {
	UserID      string
	Filename    string
	ContentType string
	Content     []byte
}

// DocumentService turns student submissions into embedded query documents.
type DocumentService struct {
	docs     DocumentStore
	blobs    storage.BlobStore
	embedder embedding.Provider
	log      *logger.Logger
	now      func() time.Time
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(docs DocumentStore, blobs storage.BlobStore, embedder embedding.Provider, log *logger.Logger) *DocumentService {
	return &DocumentService{
		docs:     docs,
		blobs:    blobs,
		embedder: embedder,
		log:      log.With("service", "DocumentService"),
		now:      utcNow,
	}
}

func resolveKind(filename, contentType string) extract.Kind {
	kind := extract.KindFromFilename(filename)
	if kind.Supported() {
		return kind
	}
	if byMIME := extract.KindFromMIME(contentType); byMIME != "" {
		return byMIME
	}
	return kind
}

// Submit stores the raw upload, extracts its text from the stored object,
// embeds it and persists the resulting document. A failure after the upload
// removes the stored object again.
func (s *DocumentService) Submit(ctx context.Context, in SubmitInput) (*model.QueryDocument, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	kind := resolveKind(in.Filename, in.ContentType)
	if !kind.Supported() {
		return nil, fmt.Errorf("%w: %q", extract.ErrUnsupportedFormat, kind)
	}
	if len(in.Content) == 0 {
		return nil, extract.ErrEmptyContent
	}

	doc := &model.QueryDocument{
		ID:       uuid.New().String(),
		UserID:   in.UserID,
		Filename: filepath.Base(in.Filename),
		Kind:     string(kind),
		Size:     len(in.Content),
	}
	doc.ObjectKey = storage.ObjectKey(in.UserID, doc.ID, in.Filename)

	if err := s.blobs.Put(ctx, doc.ObjectKey, bytes.NewReader(in.Content), in.ContentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	if err := s.process(ctx, doc, kind); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), doc.ObjectKey); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			s.log.Warn("failed to remove orphaned upload", "object_key", doc.ObjectKey, "error", delErr)
		}
		return nil, err
	}
	s.log.Info("document submitted", "document_id", doc.ID, "user_id", doc.UserID, "kind", kind, "size", doc.Size)
	return doc, nil
}

func (s *DocumentService) process(ctx context.Context, doc *model.QueryDocument, kind extract.Kind) error {
	raw, err := s.blobs.Get(ctx, doc.ObjectKey)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	text, err := extract.Extract(raw, kind)
	if err != nil {
		return err
	}
	return s.finish(ctx, doc, text)
}

// SubmitText creates a document from free text. No object is stored.
func (s *DocumentService) SubmitText(ctx context.Context, userID, text string) (*model.QueryDocument, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	canonical, err := extract.Extract([]byte(text), extract.KindText)
	if err != nil {
		return nil, err
	}
	doc := &model.QueryDocument{
		ID:     uuid.New().String(),
		UserID: userID,
		Kind:   string(extract.KindText),
		Size:   len(text),
	}
	if err := s.finish(ctx, doc, canonical); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) finish(ctx context.Context, doc *model.QueryDocument, text string) error {
	if err := checkQueryLength(text); err != nil {
		return err
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}
	doc.Text = text
	doc.Embedding = vec
	doc.CreatedAt = s.now()
	if err := s.docs.Create(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Get returns the caller's document.
func (s *DocumentService) Get(ctx context.Context, actorID, id string) (*model.QueryDocument, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != actorID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// Content returns the caller's document with the bytes of its stored upload.
// Documents submitted as plain text have no upload and report ErrNotFound.
func (s *DocumentService) Content(ctx context.Context, actorID, id string) (*model.QueryDocument, []byte, error) {
	doc, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(doc.ObjectKey) == "" {
		return nil, nil, fmt.Errorf("document %s has no stored upload: %w", id, storage.ErrNotFound)
	}
	data, err := s.blobs.Get(ctx, doc.ObjectKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load upload: %w", err)
	}
	return doc, data, nil
}

// List returns the caller's documents, newest first.
func (s *DocumentService) List(ctx context.Context, userID string) ([]model.QueryDocument, error) {
	return s.docs.ListByUser(ctx, userID)
}

// Delete removes the caller's document and its stored upload.
func (s *DocumentService) Delete(ctx context.Context, actorID, id string) error {
	doc, err := s.Get(ctx, actorID, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	if strings.TrimSpace(doc.ObjectKey) != "" {
		if err := s.blobs.Delete(ctx, doc.ObjectKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("failed to delete stored upload", "document_id", id, "object_key", doc.ObjectKey, "error", err)
		}
	}
	return nil
}
