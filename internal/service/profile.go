package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/advisor-match/internal/embedding"
	"github.com/Shivanand-hulikatti/advisor-match/internal/index"
	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

const (
	reindexConcurrency = 4
	profileLockStripes = 64
)

// ProfileService manages professor profiles and keeps the profile index in
// step with the store.
type ProfileService struct {
	profiles        ProfileStore
	embedder        embedding.Provider
	index           *index.ProfileIndex
	defaultCapacity int
	log             *logger.Logger
	now             func() time.Time

	// locks serialise the store write and the index update of one profile.
	locks [profileLockStripes]sync.Mutex
}

// NewProfileService constructs a ProfileService.
func NewProfileService(
	profiles ProfileStore,
	embedder embedding.Provider,
	idx *index.ProfileIndex,
	defaultCapacity int,
	log *logger.Logger,
) *ProfileService {
	return &ProfileService{
		profiles:        profiles,
		embedder:        embedder,
		index:           idx,
		defaultCapacity: defaultCapacity,
		log:             log.With("service", "ProfileService"),
		now:             utcNow,
	}
}

func (s *ProfileService) lock(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id))
	mu := &s.locks[h.Sum32()%profileLockStripes]
	mu.Lock()
	return mu.Unlock
}

func validateProfile(req *model.ProfileRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.ContactEmail != "" && !isValidEmail(req.ContactEmail) {
		return fmt.Errorf("%w: contact_email is not a valid email address", ErrInvalidInput)
	}
	if req.Capacity != nil && *req.Capacity > 1000 {
		return fmt.Errorf("%w: capacity cannot exceed 1000", ErrInvalidInput)
	}
	return nil
}

// embed refreshes ProfileText and, for complete profiles, the vector. An
// unchanged text keeps the existing vector.
func (s *ProfileService) embed(ctx context.Context, p *model.Profile) error {
	text := p.GenerateText()
	if !p.IsComplete() {
		p.ProfileText = text
		p.Embedding = nil
		return nil
	}
	if text == p.ProfileText && len(p.Embedding) > 0 {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed profile: %w", err)
	}
	p.ProfileText = text
	p.Embedding = vec
	return nil
}

// Create registers the caller's profile, embeds it and indexes it.
func (s *ProfileService) Create(ctx context.Context, userID string, req model.ProfileRequest) (*model.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := validateProfile(&req); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Profile{
		ID:           uuid.New().String(),
		UserID:       userID,
		Name:         req.Name,
		Title:        req.Title,
		Department:   req.Department,
		Topics:       req.Topics,
		Expertise:    req.Expertise,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		Capacity:     s.defaultCapacity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Capacity != nil {
		p.Capacity = *req.Capacity
	}
	if err := s.embed(ctx, p); err != nil {
		return nil, err
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.index.Upsert(*p); err != nil {
		s.log.Error("profile index rejected new profile", "profile_id", p.ID, "error", err)
		return nil, err
	}
	s.log.Info("profile created", "profile_id", p.ID, "indexed", p.IsComplete())
	return p, nil
}

// Update replaces the editable fields. Only the owner may update.
func (s *ProfileService) Update(ctx context.Context, actorID, id string, req model.ProfileRequest) (*model.Profile, error) {
	if err := validateProfile(&req); err != nil {
		return nil, err
	}
	defer s.lock(id)()

	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != actorID {
		return nil, ErrForbidden
	}

	p.Name = req.Name
	p.Title = req.Title
	p.Department = req.Department
	p.Topics = req.Topics
	p.Expertise = req.Expertise
	p.Description = req.Description
	p.ContactEmail = req.ContactEmail
	if req.Capacity != nil {
		p.Capacity = *req.Capacity
	}
	p.UpdatedAt = s.now()

	if err := s.embed(ctx, p); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := s.index.Upsert(*p); err != nil {
		s.log.Error("profile index rejected update", "profile_id", p.ID, "error", err)
		return nil, err
	}
	return p, nil
}

// Delete removes the owner's profile and drops it from the index.
func (s *ProfileService) Delete(ctx context.Context, actorID, id string) error {
	defer s.lock(id)()

	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.UserID != actorID {
		return ErrForbidden
	}
	if err := s.profiles.Delete(ctx, id); err != nil {
		return err
	}
	s.index.Remove(id)
	s.log.Info("profile deleted", "profile_id", id)
	return nil
}

// Get returns a single profile by ID.
func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	return s.profiles.GetByID(ctx, id)
}

// List returns all profiles.
func (s *ProfileService) List(ctx context.Context) ([]model.Profile, error) {
	return s.profiles.List(ctx)
}

// Reindex embeds every complete profile whose vector is missing or stale
// (all of them when force is set) and rebuilds the index from the store. It
// returns how many profiles were embedded.
func (s *ProfileService) Reindex(ctx context.Context, force bool) (int, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return 0, err
	}

	var stale []int
	for i := range profiles {
		p := &profiles[i]
		if !p.IsComplete() {
			continue
		}
		if force || len(p.Embedding) == 0 || p.ProfileText != p.GenerateText() {
			if force {
				p.Embedding = nil
			}
			stale = append(stale, i)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexConcurrency)
	for _, i := range stale {
		p := &profiles[i]
		g.Go(func() error {
			if err := s.embed(gctx, p); err != nil {
				return fmt.Errorf("profile %s: %w", p.ID, err)
			}
			return s.profiles.SetEmbedding(gctx, p.ID, p.ProfileText, p.Embedding)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := s.index.Replace(profiles); err != nil {
		s.log.Error("profile index rebuild failed", "error", err)
		return 0, err
	}
	s.log.Info("profile index rebuilt", "profiles", s.index.Len(), "embedded", len(stale))
	return len(stale), nil
}
