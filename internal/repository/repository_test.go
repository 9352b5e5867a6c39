package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505"}
	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestVectorOrNil(t *testing.T) {
	assert.Nil(t, vectorOrNil(nil))
	v, ok := vectorOrNil([]float32{1, 2}).(pgvector.Vector)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2}, v.Slice())
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	s := nullable("abc")
	if assert.NotNil(t, s) {
		assert.Equal(t, "abc", *s)
	}
}

func TestViolatedConstraint(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: activeDocumentIndex})
	assert.Equal(t, activeDocumentIndex, violatedConstraint(err))
	assert.Empty(t, violatedConstraint(&pgconn.PgError{Code: "23503", ConstraintName: "fk"}))
	assert.Empty(t, violatedConstraint(errors.New("boom")))
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	// no pool: a malformed id must be rejected before any query is sent
	profiles := &ProfileRepository{}
	regs := &RegistrationRepository{}
	docs := &DocumentRepository{}
	notes := &NotificationRepository{}

	_, err := profiles.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, profiles.Update(ctx, &model.Profile{ID: "abc"}), ErrNotFound)
	assert.ErrorIs(t, profiles.SetEmbedding(ctx, "abc", "", nil), ErrNotFound)
	assert.ErrorIs(t, profiles.Delete(ctx, "abc"), ErrNotFound)

	_, err = regs.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = regs.Transition(ctx, "abc", model.ActionAccept, "", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, regs.Create(ctx, &model.Registration{ProfileID: "abc"}), ErrNotFound)
	assert.ErrorIs(t, regs.Create(ctx, &model.Registration{ProfileID: uuid.NewString(), DocumentID: "abc"}), ErrNotFound)
	list, err := regs.ListByProfile(ctx, "abc")
	assert.NoError(t, err)
	assert.Empty(t, list)

	_, err = docs.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, docs.Delete(ctx, "abc"), ErrNotFound)
	assert.ErrorIs(t, notes.MarkRead(ctx, "abc", "someone"), ErrNotFound)
}
