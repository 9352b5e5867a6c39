// Package repository implements the PostgreSQL persistence for profiles,
// documents, registrations and notifications. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrProfileExists is returned when a user already owns a profile.
var ErrProfileExists = errors.New("user already has a profile")

// ErrCapacityTooLow is returned when a profile update would set capacity
// below the number of accepted registrations.
var ErrCapacityTooLow = errors.New("capacity is below accepted registrations")

// ErrDuplicateRegistration is returned when the student already has a pending
// or accepted registration with the profile.
var ErrDuplicateRegistration = errors.New("an active registration already exists for this profile")

// ErrCapacityExceeded is returned when accepting would exceed the profile's capacity.
var ErrCapacityExceeded = errors.New("profile has no remaining capacity")

// ErrDocumentInUse is returned when the document already backs a pending or
// accepted registration. A document is submitted to one supervisor at a time.
var ErrDocumentInUse = errors.New("document already backs an active registration")

const (
	uniqueViolation = "23505"

	activeDocumentIndex = "registrations_active_document_idx"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// violatedConstraint returns the constraint named by a unique violation.
func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// validID reports whether id can name a row. Primary keys are UUIDs, and a
// malformed id would otherwise fail parameter encoding instead of matching
// nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func vectorOrNil(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ProfileRepository handles persistence for profiles.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, user_id, name, title, department, topics, expertise, description,
	contact_email, capacity, accepted_count, profile_text, embedding, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p   model.Profile
		emb *pgvector.Vector
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Title, &p.Department, &p.Topics, &p.Expertise,
		&p.Description, &p.ContactEmail, &p.Capacity, &p.AcceptedCount, &p.ProfileText, &emb,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if emb != nil {
		p.Embedding = emb.Slice()
	}
	return &p, nil
}

// Create inserts p. The caller assigns ID and timestamps.
func (r *ProfileRepository) Create(ctx context.Context, p *model.Profile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.UserID, p.Name, p.Title, p.Department, p.Topics, p.Expertise, p.Description,
		p.ContactEmail, p.Capacity, p.AcceptedCount, p.ProfileText, vectorOrNil(p.Embedding),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProfileExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of p. accepted_count is owned by the
// registration repository and is never written here.
func (r *ProfileRepository) Update(ctx context.Context, p *model.Profile) error {
	if !validID(p.ID) {
		return ErrNotFound
	}
	var accepted int
	err := r.db.QueryRow(ctx,
		`UPDATE profiles
		 SET name = $2, title = $3, department = $4, topics = $5, expertise = $6,
		     description = $7, contact_email = $8, capacity = $9, profile_text = $10,
		     embedding = $11, updated_at = $12
		 WHERE id = $1 AND accepted_count <= $9
		 RETURNING accepted_count`,
		p.ID, p.Name, p.Title, p.Department, p.Topics, p.Expertise, p.Description,
		p.ContactEmail, p.Capacity, p.ProfileText, vectorOrNil(p.Embedding), p.UpdatedAt,
	).Scan(&accepted)
	if err == nil {
		p.AcceptedCount = accepted
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update profile: %w", err)
	}
	// Distinguish a missing row from the capacity guard.
	if _, getErr := r.GetByID(ctx, p.ID); getErr != nil {
		return getErr
	}
	return ErrCapacityTooLow
}

// SetEmbedding stores a freshly computed vector without touching other fields.
func (r *ProfileRepository) SetEmbedding(ctx context.Context, id, text string, vec []float32) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET profile_text = $2, embedding = $3 WHERE id = $1`,
		id, text, vectorOrNil(vec),
	)
	if err != nil {
		return fmt.Errorf("set profile embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a profile and, through the foreign key, its registrations.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns a single profile or ErrNotFound.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	p, err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetByUserID returns the profile owned by userID or ErrNotFound.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile by user: %w", err)
	}
	return p, nil
}

// List returns all profiles ordered by id.
func (r *ProfileRepository) List(ctx context.Context) ([]model.Profile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}
