package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/advisor-match/internal/index"
	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
	"github.com/Shivanand-hulikatti/advisor-match/internal/notify"
	"github.com/Shivanand-hulikatti/advisor-match/internal/repository/memory"
	"github.com/Shivanand-hulikatti/advisor-match/internal/storage"
)

// stubEmbedder returns a fixed vector for texts containing a registered
// keyword and [0, 0] otherwise.
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   atomic.Int32
	err     error
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[string][]float32)}
}

func (e *stubEmbedder) set(keyword string, vec ...float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[keyword] = vec
}

func (e *stubEmbedder) Name() string   { return "stub" }
func (e *stubEmbedder) Dimension() int { return 2 }

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range e.vectors {
		if strings.Contains(text, k) {
			return append([]float32(nil), v...), nil
		}
	}
	return []float32{0, 0}, nil
}

// failingInbox fails every append.
type failingInbox struct{ calls atomic.Int32 }

func (f *failingInbox) Append(context.Context, *model.NotificationEvent) error {
	f.calls.Add(1)
	return context.DeadlineExceeded
}

type testEnv struct {
	store    *memory.Store
	index    *index.ProfileIndex
	embedder *stubEmbedder
	notifier *notify.Dispatcher
	blobs    *storage.Local

	profiles      *ProfileService
	registrations *RegistrationService
	documents     *DocumentService
	matches       *MatchService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()
	store := memory.New()
	idx := index.New()
	emb := newStubEmbedder()
	blobs, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	notifier := notify.New(store.Notifications(), log, notify.Options{})
	t.Cleanup(func() { _ = notifier.Close(context.Background()) })

	return &testEnv{
		store:         store,
		index:         idx,
		embedder:      emb,
		notifier:      notifier,
		blobs:         blobs,
		profiles:      NewProfileService(store.Profiles(), emb, idx, 2, log),
		registrations: NewRegistrationService(store.Registrations(), store.Profiles(), store.Documents(), notifier, log),
		documents:     NewDocumentService(store.Documents(), blobs, emb, log),
		matches:       NewMatchService(idx, store.Documents(), emb, MatchDefaults{TopK: 5}, log),
		notifications: NewNotificationService(store.Notifications()),
	}
}

func intPtr(i int) *int { return &i }

// createProfile creates a complete profile whose text embeds to vec.
func (e *testEnv) createProfile(t *testing.T, owner, keyword string, capacity int, vec ...float32) *model.Profile {
	t.Helper()
	e.embedder.set(keyword, vec...)
	p, err := e.profiles.Create(context.Background(), owner, model.ProfileRequest{
		Name:       "Prof " + owner,
		Title:      "Professor",
		Department: "Computer Science",
		Topics:     []string{keyword},
		Capacity:   intPtr(capacity),
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) inbox(t *testing.T, userID string) []model.NotificationEvent {
	t.Helper()
	list, err := e.notifications.List(context.Background(), userID, 0)
	require.NoError(t, err)
	return list
}
