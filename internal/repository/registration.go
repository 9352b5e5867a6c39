package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, student_id, profile_id, document_id, priority, status, notes, created_at, updated_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var (
		reg   model.Registration
		docID *string
	)
	if err := row.Scan(&reg.ID, &reg.StudentID, &reg.ProfileID, &docID, &reg.Priority,
		&reg.Status, &reg.Notes, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return nil, err
	}
	if docID != nil {
		reg.DocumentID = *docID
	}
	return &reg, nil
}

// lockProfile takes the row lock that serialises every registration write
// for one profile.
func lockProfile(ctx context.Context, tx pgx.Tx, profileID string) (capacity, accepted int, err error) {
	err = tx.QueryRow(ctx,
		`SELECT capacity, accepted_count
		 FROM profiles
		 WHERE id = $1
		 FOR UPDATE`,
		profileID,
	).Scan(&capacity, &accepted)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock profile row: %w", err)
	}
	return capacity, accepted, nil
}

// Create inserts reg in PENDING state.
//
// The profile row is locked first so a request cannot interleave with an
// accept on the same profile. The partial unique index on (student_id,
// profile_id) backs up the duplicate check, and the one on document_id
// backs up the document check, since requests naming the same document may
// lock different profiles.
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) (err error) {
	if !validID(reg.ProfileID) {
		return ErrNotFound
	}
	if reg.DocumentID != "" && !validID(reg.DocumentID) {
		return ErrNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, _, err = lockProfile(ctx, tx, reg.ProfileID); err != nil {
		return err
	}

	var active bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM registrations
			WHERE student_id = $1 AND profile_id = $2 AND status IN ('pending', 'accepted'))`,
		reg.StudentID, reg.ProfileID,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("check duplicate: %w", err)
	}
	if active {
		return ErrDuplicateRegistration
	}

	if reg.DocumentID != "" {
		var inUse bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM registrations
				WHERE document_id = $1 AND status IN ('pending', 'accepted'))`,
			reg.DocumentID,
		).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("check document use: %w", err)
		}
		if inUse {
			return ErrDocumentInUse
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		reg.ID, reg.StudentID, reg.ProfileID, nullable(reg.DocumentID), reg.Priority,
		reg.Status, reg.Notes, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		if violatedConstraint(err) == activeDocumentIndex {
			return ErrDocumentInUse
		}
		if isUniqueViolation(err) {
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("insert registration: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Transition applies action to the registration atomically.
//
// Naive read-count-then-write lets two concurrent accepts both see a free
// slot. Locking the profile row with SELECT … FOR UPDATE serialises every
// transition on that profile, so the capacity check and the accepted_count
// increment happen as one step. Lock order is always profile row, then
// registration row.
func (r *RegistrationRepository) Transition(ctx context.Context, id string, action model.Action, note string, now time.Time) (_ *model.Registration, err error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var profileID string
	err = r.db.QueryRow(ctx, `SELECT profile_id FROM registrations WHERE id = $1`, id).Scan(&profileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	capacity, accepted, err := lockProfile(ctx, tx, profileID)
	if err != nil {
		return nil, err
	}

	reg, err := scanRegistration(tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock registration row: %w", err)
	}

	next, err := reg.Status.Apply(action)
	if err != nil {
		return nil, err
	}

	delta := 0
	switch {
	case next == model.StatusAccepted:
		if accepted >= capacity {
			return nil, ErrCapacityExceeded
		}
		delta = 1
	case reg.Status == model.StatusAccepted:
		delta = -1
	}
	if delta != 0 {
		_, err = tx.Exec(ctx,
			`UPDATE profiles SET accepted_count = accepted_count + $2 WHERE id = $1`,
			profileID, delta,
		)
		if err != nil {
			return nil, fmt.Errorf("update accepted_count: %w", err)
		}
	}

	reg.Status = next
	reg.UpdatedAt = now
	if note != "" {
		reg.Notes = note
	}
	_, err = tx.Exec(ctx,
		`UPDATE registrations SET status = $2, notes = $3, updated_at = $4 WHERE id = $1`,
		reg.ID, reg.Status, reg.Notes, reg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reg, nil
}

// GetByID returns a single registration or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListByStudent returns a student's registrations, oldest first.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID string) ([]model.Registration, error) {
	return r.list(ctx, `WHERE student_id = $1 ORDER BY priority ASC, created_at ASC`, studentID)
}

// ListByProfile returns the registrations addressed to a profile, oldest first.
func (r *RegistrationRepository) ListByProfile(ctx context.Context, profileID string) ([]model.Registration, error) {
	if !validID(profileID) {
		return nil, nil
	}
	return r.list(ctx, `WHERE profile_id = $1 ORDER BY created_at ASC`, profileID)
}

func (r *RegistrationRepository) list(ctx context.Context, where string, arg string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx, `SELECT `+registrationColumns+` FROM registrations `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}
