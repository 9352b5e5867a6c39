package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
	"github.com/Shivanand-hulikatti/advisor-match/internal/repository"
)

// RegistrationService runs the registration state machine: request, accept,
// reject and withdraw. The store enforces the duplicate and capacity guards;
// this layer validates, authorises and emits notifications.
type RegistrationService struct {
	regs     RegistrationStore
	profiles ProfileStore
	docs     DocumentStore
	notifier Dispatcher
	log      *logger.Logger
	now      func() time.Time
}

// NewRegistrationService constructs a RegistrationService with its dependencies.
func NewRegistrationService(
	regs RegistrationStore,
	profiles ProfileStore,
	docs DocumentStore,
	notifier Dispatcher,
	log *logger.Logger,
) *RegistrationService {
	return &RegistrationService{
		regs:     regs,
		profiles: profiles,
		docs:     docs,
		notifier: notifier,
		log:      log.With("service", "RegistrationService"),
		now:      utcNow,
	}
}

// Request creates a PENDING registration from studentID to the profile.
func (s *RegistrationService) Request(ctx context.Context, studentID string, req model.RegisterRequest) (*model.Registration, error) {
	req.ProfileID = strings.TrimSpace(req.ProfileID)
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	req.Notes = strings.TrimSpace(req.Notes)
	if studentID == "" {
		return nil, fmt.Errorf("%w: student id is required", ErrInvalidInput)
	}
	if req.ProfileID == "" {
		return nil, fmt.Errorf("%w: profile_id is required", ErrInvalidInput)
	}
	if req.Priority == 0 {
		req.Priority = 1
	}
	if req.Priority < 1 {
		return nil, fmt.Errorf("%w: priority must be at least 1", ErrInvalidInput)
	}

	profile, err := s.profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile.UserID == studentID {
		return nil, fmt.Errorf("%w: cannot register with your own profile", ErrInvalidInput)
	}
	if req.DocumentID != "" {
		doc, err := s.docs.GetByID(ctx, req.DocumentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: document %s not found", ErrInvalidInput, req.DocumentID)
			}
			return nil, err
		}
		if doc.UserID != studentID {
			return nil, ErrForbidden
		}
	}

	now := s.now()
	reg := &model.Registration{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		ProfileID:  profile.ID,
		DocumentID: req.DocumentID,
		Priority:   req.Priority,
		Status:     model.StatusPending,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.regs.Create(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrDuplicateRegistration) ||
			errors.Is(err, repository.ErrDocumentInUse) ||
			errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	s.log.Info("registration requested", "registration_id", reg.ID, "student_id", studentID, "profile_id", profile.ID)
	s.emit(ctx, studentID, model.KindRegistrationRequest, reg.ID,
		fmt.Sprintf("Your registration request to %s was submitted.", profile.Name))
	s.emit(ctx, profile.UserID, model.KindRegistrationRequest, reg.ID,
		"You have a new registration request.")
	return reg, nil
}

// Accept moves a PENDING registration to ACCEPTED if the profile has room.
func (s *RegistrationService) Accept(ctx context.Context, id string) (*model.Registration, error) {
	return s.transition(ctx, id, model.ActionAccept, "")
}

// Reject moves a PENDING registration to REJECTED.
func (s *RegistrationService) Reject(ctx context.Context, id, reason string) (*model.Registration, error) {
	return s.transition(ctx, id, model.ActionReject, reason)
}

// Withdraw moves a PENDING or ACCEPTED registration to WITHDRAWN, freeing a
// slot when it was accepted.
func (s *RegistrationService) Withdraw(ctx context.Context, id, reason string) (*model.Registration, error) {
	return s.transition(ctx, id, model.ActionWithdraw, reason)
}

// Act authorises actorID for action on the registration and applies it.
func (s *RegistrationService) Act(ctx context.Context, actorID, id string, action model.Action, reason string) (*model.Registration, error) {
	if err := s.Authorize(ctx, actorID, id, action); err != nil {
		return nil, err
	}
	switch action {
	case model.ActionAccept:
		return s.Accept(ctx, id)
	case model.ActionReject:
		return s.Reject(ctx, id, reason)
	default:
		return s.Withdraw(ctx, id, reason)
	}
}

// Authorize checks that accept and reject come from the profile owner and
// withdraw from the student.
func (s *RegistrationService) Authorize(ctx context.Context, actorID, id string, action model.Action) error {
	reg, err := s.regs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch action {
	case model.ActionWithdraw:
		if reg.StudentID != actorID {
			return ErrForbidden
		}
		return nil
	case model.ActionAccept, model.ActionReject:
		profile, err := s.profiles.GetByID(ctx, reg.ProfileID)
		if err != nil {
			return err
		}
		if profile.UserID != actorID {
			return ErrForbidden
		}
		return nil
	}
	return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
}

func (s *RegistrationService) transition(ctx context.Context, id string, action model.Action, reason string) (*model.Registration, error) {
	reg, err := s.regs.Transition(ctx, id, action, strings.TrimSpace(reason), s.now())
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidTransition),
			errors.Is(err, repository.ErrCapacityExceeded),
			errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
		return nil, fmt.Errorf("%s registration: %w", action, err)
	}

	s.log.Info("registration transitioned", "registration_id", reg.ID, "action", action, "status", reg.Status)
	s.emit(ctx, reg.StudentID, model.KindForStatus(reg.Status), reg.ID, statusMessage(reg.Status, reason))
	return reg, nil
}

// Get returns the registration if actorID is its student or the owner of
// its profile.
func (s *RegistrationService) Get(ctx context.Context, actorID, id string) (*model.Registration, error) {
	reg, err := s.regs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.StudentID == actorID {
		return reg, nil
	}
	profile, err := s.profiles.GetByID(ctx, reg.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile.UserID != actorID {
		return nil, ErrForbidden
	}
	return reg, nil
}

// ListByStudent returns the caller's own registrations.
func (s *RegistrationService) ListByStudent(ctx context.Context, studentID string) ([]model.Registration, error) {
	return s.regs.ListByStudent(ctx, studentID)
}

// ListByProfile returns a profile's incoming registrations. Only the owner
// may list them.
func (s *RegistrationService) ListByProfile(ctx context.Context, actorID, profileID string) ([]model.Registration, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile.UserID != actorID {
		return nil, ErrForbidden
	}
	return s.regs.ListByProfile(ctx, profileID)
}

func (s *RegistrationService) emit(ctx context.Context, recipient string, kind model.NotificationKind, regID, msg string) {
	s.notifier.Dispatch(ctx, model.NotificationEvent{
		ID:             uuid.New().String(),
		RecipientID:    recipient,
		Kind:           kind,
		RegistrationID: regID,
		Message:        msg,
		CreatedAt:      s.now(),
	})
}

func statusMessage(status model.Status, reason string) string {
	var msg string
	switch status {
	case model.StatusAccepted:
		msg = "Your registration was accepted."
	case model.StatusRejected:
		msg = "Your registration was rejected."
	case model.StatusWithdrawn:
		msg = "Your registration was withdrawn."
	default:
		msg = "Your registration status changed to " + string(status) + "."
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		msg += " Reason: " + reason
	}
	return msg
}
