// Package memory provides in-process implementations of the repository
// contracts. They back the "memory" store mode and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
	"github.com/Shivanand-hulikatti/advisor-match/internal/repository"
)

// Store holds all in-memory state. Use the accessor methods to get the
// per-entity views.
type Store struct {
	mu            sync.RWMutex
	profiles      map[string]*model.Profile
	registrations map[string]*model.Registration
	documents     map[string]*model.QueryDocument
	notifications []*model.NotificationEvent
	notified      map[string]bool

	// profileLocks serialises registration writes per profile.
	profileLocks sync.Map
}

// New returns an empty store.
func New() *Store {
	return &Store{
		profiles:      make(map[string]*model.Profile),
		registrations: make(map[string]*model.Registration),
		documents:     make(map[string]*model.QueryDocument),
		notified:      make(map[string]bool),
	}
}

func (s *Store) lockProfile(id string) func() {
	v, _ := s.profileLocks.LoadOrStore(id, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Profiles returns the profile view.
func (s *Store) Profiles() *Profiles { return &Profiles{s: s} }

// Registrations returns the registration view.
func (s *Store) Registrations() *Registrations { return &Registrations{s: s} }

// Documents returns the document view.
func (s *Store) Documents() *Documents { return &Documents{s: s} }

// Notifications returns the notification view.
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }

// Profiles implements the profile store.
type Profiles struct{ s *Store }

// Create stores prof. A user owns at most one profile.
func (p *Profiles) Create(_ context.Context, prof *model.Profile) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.profiles {
		if existing.UserID == prof.UserID {
			return repository.ErrProfileExists
		}
	}
	c := prof.Clone()
	s.profiles[prof.ID] = &c
	return nil
}

// Update overwrites the editable fields, keeping the accepted count.
func (p *Profiles) Update(_ context.Context, prof *model.Profile) error {
	s := p.s
	unlock := s.lockProfile(prof.ID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[prof.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if prof.Capacity < cur.AcceptedCount {
		return repository.ErrCapacityTooLow
	}
	c := prof.Clone()
	c.UserID = cur.UserID
	c.AcceptedCount = cur.AcceptedCount
	c.CreatedAt = cur.CreatedAt
	s.profiles[prof.ID] = &c
	prof.AcceptedCount = cur.AcceptedCount
	return nil
}

// SetEmbedding stores a fresh vector and the text it was computed from.
func (p *Profiles) SetEmbedding(_ context.Context, id, text string, vec []float32) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	cur.ProfileText = text
	cur.Embedding = append([]float32(nil), vec...)
	return nil
}

// Delete removes the profile and its registrations, matching the cascade in
// the SQL schema.
func (p *Profiles) Delete(_ context.Context, id string) error {
	s := p.s
	unlock := s.lockProfile(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.profiles, id)
	for rid, r := range s.registrations {
		if r.ProfileID == id {
			delete(s.registrations, rid)
		}
	}
	return nil
}

// GetByID returns a copy of the profile or ErrNotFound.
func (p *Profiles) GetByID(_ context.Context, id string) (*model.Profile, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cur.Clone()
	return &c, nil
}

// GetByUserID returns the profile owned by userID or ErrNotFound.
func (p *Profiles) GetByUserID(_ context.Context, userID string) (*model.Profile, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cur := range s.profiles {
		if cur.UserID == userID {
			c := cur.Clone()
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// List returns copies of all profiles ordered by id.
func (p *Profiles) List(_ context.Context) ([]model.Profile, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Profile, 0, len(s.profiles))
	for _, cur := range s.profiles {
		out = append(out, cur.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Registrations implements the registration store.
type Registrations struct{ s *Store }

// Create stores reg after the duplicate and document checks, under the
// profile's lock.
func (r *Registrations) Create(_ context.Context, reg *model.Registration) error {
	s := r.s
	unlock := s.lockProfile(reg.ProfileID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[reg.ProfileID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range s.registrations {
		if existing.StudentID == reg.StudentID && existing.ProfileID == reg.ProfileID && existing.Status.Active() {
			return repository.ErrDuplicateRegistration
		}
	}
	if reg.DocumentID != "" {
		for _, existing := range s.registrations {
			if existing.DocumentID == reg.DocumentID && existing.Status.Active() {
				return repository.ErrDocumentInUse
			}
		}
	}
	c := *reg
	s.registrations[reg.ID] = &c
	return nil
}

// Transition holds the profile's lock across the capacity check and the
// accepted count update, so concurrent accepts on one profile serialise
// while other profiles proceed.
func (r *Registrations) Transition(_ context.Context, id string, action model.Action, note string, now time.Time) (*model.Registration, error) {
	s := r.s

	s.mu.RLock()
	cur, ok := s.registrations[id]
	var profileID string
	if ok {
		profileID = cur.ProfileID
	}
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	unlock := s.lockProfile(profileID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	prof, ok := s.profiles[profileID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	next, err := reg.Status.Apply(action)
	if err != nil {
		return nil, err
	}
	switch {
	case next == model.StatusAccepted:
		if prof.AcceptedCount >= prof.Capacity {
			return nil, repository.ErrCapacityExceeded
		}
		prof.AcceptedCount++
	case reg.Status == model.StatusAccepted:
		prof.AcceptedCount--
	}

	reg.Status = next
	reg.UpdatedAt = now
	if note != "" {
		reg.Notes = note
	}
	c := *reg
	return &c, nil
}

// GetByID returns a copy of the registration or ErrNotFound.
func (r *Registrations) GetByID(_ context.Context, id string) (*model.Registration, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *reg
	return &c, nil
}

// ListByStudent returns the student's registrations by priority, then age.
func (r *Registrations) ListByStudent(_ context.Context, studentID string) ([]model.Registration, error) {
	out := r.filter(func(reg *model.Registration) bool { return reg.StudentID == studentID })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListByProfile returns a profile's registrations, oldest first.
func (r *Registrations) ListByProfile(_ context.Context, profileID string) ([]model.Registration, error) {
	out := r.filter(func(reg *model.Registration) bool { return reg.ProfileID == profileID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Registrations) filter(keep func(*model.Registration) bool) []model.Registration {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Registration
	for _, reg := range s.registrations {
		if keep(reg) {
			out = append(out, *reg)
		}
	}
	// map order is random; id gives a stable base before the caller's sort
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Documents implements the document store.
type Documents struct{ s *Store }

// Create stores a copy of doc.
func (d *Documents) Create(_ context.Context, doc *model.QueryDocument) error {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *doc
	c.Embedding = append([]float32(nil), doc.Embedding...)
	s.documents[doc.ID] = &c
	return nil
}

// GetByID returns a copy of the document or ErrNotFound.
func (d *Documents) GetByID(_ context.Context, id string) (*model.QueryDocument, error) {
	s := d.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *doc
	c.Embedding = append([]float32(nil), doc.Embedding...)
	return &c, nil
}

// ListByUser returns the user's documents, newest first.
func (d *Documents) ListByUser(_ context.Context, userID string) ([]model.QueryDocument, error) {
	s := d.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.QueryDocument
	for _, doc := range s.documents {
		if doc.UserID == userID {
			c := *doc
			c.Embedding = append([]float32(nil), doc.Embedding...)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes the document and detaches it from registrations.
func (d *Documents) Delete(_ context.Context, id string) error {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.documents, id)
	for _, reg := range s.registrations {
		if reg.DocumentID == id {
			reg.DocumentID = ""
		}
	}
	return nil
}

// Notifications implements the notification store.
type Notifications struct{ s *Store }

// Append adds ev to the inbox. Appending a known event id is a no-op.
func (n *Notifications) Append(_ context.Context, ev *model.NotificationEvent) error {
	s := n.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notified[ev.ID] {
		return nil
	}
	c := *ev
	s.notifications = append(s.notifications, &c)
	s.notified[ev.ID] = true
	return nil
}

// ListByRecipient returns up to limit events, newest first. limit <= 0
// returns all of them.
func (n *Notifications) ListByRecipient(_ context.Context, recipientID string, limit int) ([]model.NotificationEvent, error) {
	s := n.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.NotificationEvent
	// newest first; appends arrive in time order
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if ev := s.notifications[i]; ev.RecipientID == recipientID {
			out = append(out, *ev)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// UnreadCount counts the recipient's unread events.
func (n *Notifications) UnreadCount(_ context.Context, recipientID string) (int, error) {
	s := n.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, ev := range s.notifications {
		if ev.RecipientID == recipientID && !ev.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flags one event as read. The event must belong to recipientID.
func (n *Notifications) MarkRead(_ context.Context, id, recipientID string) error {
	s := n.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.notifications {
		if ev.ID == id && ev.RecipientID == recipientID {
			ev.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

// MarkAllRead flags every unread event and returns how many changed.
func (n *Notifications) MarkAllRead(_ context.Context, recipientID string) (int, error) {
	s := n.s
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, ev := range s.notifications {
		if ev.RecipientID == recipientID && !ev.Read {
			ev.Read = true
			changed++
		}
	}
	return changed, nil
}
