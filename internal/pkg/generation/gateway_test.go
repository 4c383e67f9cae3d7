package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/credits"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
)

type fakeQueue struct {
	mu        sync.Mutex
	submits   []submittedRequest
	statuses  []QueueStatus
	statusErr error
	result    []byte
	resultErr error
	submitErr error
	polls     int
}

type submittedRequest struct {
	model string
	input map[string]interface{}
}

func (f *fakeQueue) Submit(ctx context.Context, model string, input interface{}) (Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return Ticket{}, f.submitErr
	}
	m, _ := input.(map[string]interface{})
	f.submits = append(f.submits, submittedRequest{model: model, input: m})
	return Ticket{RequestID: "req-1", StatusURL: "https://queue.test/status", ResponseURL: "https://queue.test/result"}, nil
}

// Status replays the configured statuses; the last one repeats forever.
func (f *fakeQueue) Status(ctx context.Context, statusURL string) (QueueStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.statusErr != nil {
		return QueueStatus{}, f.statusErr
	}
	idx := f.polls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func (f *fakeQueue) Result(ctx context.Context, responseURL string) ([]byte, error) {
	return f.result, f.resultErr
}

type fakeAvatarHistory struct {
	saved []*models.AvatarGeneration
	err   error
}

func (h *fakeAvatarHistory) CreateAvatar(gen *models.AvatarGeneration) error {
	if h.err != nil {
		return h.err
	}
	gen.ID = uint(len(h.saved) + 1)
	gen.UUID = "gen-uuid"
	h.saved = append(h.saved, gen)
	return nil
}

type fakeArchiveScheduler struct {
	scheduled []*models.AvatarGeneration
}

func (a *fakeArchiveScheduler) ScheduleArchive(ctx context.Context, gen *models.AvatarGeneration) error {
	a.scheduled = append(a.scheduled, gen)
	return nil
}

type gatewayFixture struct {
	gateway *Gateway
	store   *credits.MemoryStore
	queue   *fakeQueue
	history *fakeAvatarHistory
	sleeps  int
}

func newGatewayFixture(t *testing.T, balance int) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		store:   credits.NewMemoryStore(),
		queue:   &fakeQueue{},
		history: &fakeAvatarHistory{},
	}
	f.store.Put(1, balance, entitlements.TierFree)
	poller := &Poller{
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultPollMaxAttempts,
		Sleep: func(ctx context.Context, d time.Duration) error {
			f.sleeps++
			return ctx.Err()
		},
	}
	ledger := credits.NewLedger(f.store, entitlements.DefaultTables())
	f.gateway = NewGateway(ledger, f.queue, f.history, poller)
	return f
}

func completedAfter(n int) []QueueStatus {
	out := make([]QueueStatus, 0, n)
	for i := 1; i < n; i++ {
		out = append(out, QueueStatus{Status: QueueStatusInProgress})
	}
	return append(out, QueueStatus{Status: QueueStatusCompleted})
}

func TestGenerateAvatarChargesAfterSuccess(t *testing.T) {
	f := newGatewayFixture(t, 100)
	f.queue.statuses = completedAfter(3)
	f.queue.result = []byte(`{"images":[{"url":"https://fal.media/files/a.png"}]}`)

	out, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "  a fox astronaut "})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://fal.media/files/a.png"}, out.Images)
	assert.Equal(t, 5, out.CreditsRemaining)
	assert.Empty(t, out.Warning)
	require.NotNil(t, out.Generation)
	assert.Equal(t, models.AVATAR_MODE_CREATE, out.Generation.Mode)
	assert.Equal(t, "a fox astronaut", out.Generation.Prompt)
	assert.Nil(t, out.Generation.SourceImageURL)

	require.Len(t, f.queue.submits, 1)
	assert.Equal(t, ModelCreate, f.queue.submits[0].model)
	assert.Equal(t, map[string]interface{}{"prompt": "a fox astronaut"}, f.queue.submits[0].input)
	assert.Equal(t, 3, f.sleeps)
	assert.Equal(t, 5, f.store.Credits(1))
	require.Len(t, f.store.Entries(), 1)
	assert.Equal(t, -95, f.store.Entries()[0].Amount)
}

func TestGenerateAvatarEditUsesSourceImage(t *testing.T) {
	f := newGatewayFixture(t, 200)
	f.queue.statuses = completedAfter(1)
	f.queue.result = []byte(`{"data":{"images":[{"url":"https://fal.media/files/b.png"}]}}`)

	out, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{
		Prompt:         "make it blue",
		Mode:           "edit",
		SourceImageURL: "https://cdn.example.com/src.png",
	})
	require.NoError(t, err)

	require.Len(t, f.queue.submits, 1)
	assert.Equal(t, ModelEdit, f.queue.submits[0].model)
	assert.Equal(t, []string{"https://cdn.example.com/src.png"}, f.queue.submits[0].input["image_urls"])
	require.NotNil(t, out.Generation.SourceImageURL)
	assert.Equal(t, "https://cdn.example.com/src.png", *out.Generation.SourceImageURL)
	assert.Equal(t, models.AVATAR_MODE_EDIT, out.Generation.Mode)
}

func TestGenerateAvatarTimesOutWithoutCharging(t *testing.T) {
	f := newGatewayFixture(t, 100)
	f.queue.statuses = []QueueStatus{{Status: QueueStatusInProgress}}

	out, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "portrait"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrGenerationTimeout)

	assert.Equal(t, DefaultPollMaxAttempts, f.queue.polls)
	assert.Equal(t, DefaultPollMaxAttempts, f.sleeps)
	assert.Equal(t, 100, f.store.Credits(1))
	assert.Empty(t, f.store.Entries())
	assert.Empty(t, f.history.saved)
}

func TestGenerateAvatarInsufficientCreditsSkipsProvider(t *testing.T) {
	f := newGatewayFixture(t, 50)

	_, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "portrait"})

	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 95, insufficient.Required)
	assert.Equal(t, 50, insufficient.Available)
	assert.Empty(t, f.queue.submits)
}

func TestGenerateAvatarValidation(t *testing.T) {
	tests := []struct {
		name string
		req  AvatarRequest
		msg  string
	}{
		{"missing prompt", AvatarRequest{Prompt: "  "}, "Prompt is required"},
		{"edit without source", AvatarRequest{Prompt: "x", Mode: "edit"}, "Source image is required for edit mode"},
		{"unknown mode", AvatarRequest{Prompt: "x", Mode: "upscale"}, "Mode must be create or edit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t, 500)
			_, err := f.gateway.GenerateAvatar(context.Background(), 1, tt.req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Message)
			assert.Empty(t, f.queue.submits)
			assert.Equal(t, 500, f.store.Credits(1))
		})
	}
}

func TestGenerateCombineBounds(t *testing.T) {
	tests := []struct {
		name   string
		images []string
		msg    string
	}{
		{"none", nil, "At least 2 images are required"},
		{"one", []string{"a"}, "At least 2 images are required"},
		{"five", []string{"a", "b", "c", "d", "e"}, "Maximum 4 images allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t, 100)
			_, err := f.gateway.GenerateCombine(context.Background(), 1, CombineRequest{Prompt: "merge", ImageURLs: tt.images})

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Message)
			assert.Empty(t, f.queue.submits)
		})
	}
}

func TestGenerateCombineRecordsFirstSource(t *testing.T) {
	f := newGatewayFixture(t, 30)
	f.queue.statuses = completedAfter(2)
	f.queue.result = []byte(`{"images":[{"url":"https://fal.media/files/c1.png"},{"url":""},{"url":"https://fal.media/files/c2.png"}]}`)

	images := []string{"https://cdn/1.png", "https://cdn/2.png", "https://cdn/3.png"}
	out, err := f.gateway.GenerateCombine(context.Background(), 1, CombineRequest{Prompt: "group photo", ImageURLs: images})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://fal.media/files/c1.png", "https://fal.media/files/c2.png"}, out.Images)
	assert.Equal(t, 5, out.CreditsRemaining)
	assert.Equal(t, ModelEdit, f.queue.submits[0].model)
	assert.Equal(t, images, f.queue.submits[0].input["image_urls"])
	assert.Equal(t, models.AVATAR_MODE_COMBINE, out.Generation.Mode)
	assert.Equal(t, "https://cdn/1.png", *out.Generation.SourceImageURL)
	assert.Len(t, out.Generation.Images, 2)
	assert.Equal(t, 1, out.Generation.Images[1].Position)
}

func TestGenerateAvatarProviderFailure(t *testing.T) {
	tests := []struct {
		name   string
		status QueueStatus
		want   string
	}{
		{"with reason", QueueStatus{Status: QueueStatusFailed, Error: "NSFW content detected"}, "NSFW content detected"},
		{"without reason", QueueStatus{Status: QueueStatusFailed}, "Generation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t, 100)
			f.queue.statuses = []QueueStatus{tt.status}

			_, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "x"})

			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Message)
			assert.Equal(t, 100, f.store.Credits(1))
		})
	}
}

func TestGenerateAvatarStatusErrorAbortsImmediately(t *testing.T) {
	f := newGatewayFixture(t, 100)
	f.queue.statusErr = &ProviderError{StatusCode: 500, Message: "Status check failed: 500"}

	_, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "x"})
	assert.EqualError(t, err, "Status check failed: 500")
	assert.Equal(t, 1, f.queue.polls)
	assert.Equal(t, 100, f.store.Credits(1))
}

func TestGenerateAvatarWithoutAssetsIsNotCharged(t *testing.T) {
	f := newGatewayFixture(t, 100)
	f.queue.statuses = completedAfter(1)
	f.queue.result = []byte(`{"images":[],"data":{"images":[{"url":""}]}}`)

	_, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoAssets)
	assert.Equal(t, 100, f.store.Credits(1))
	assert.Empty(t, f.history.saved)
}

func TestGenerateAvatarHistoryFailureStillReturnsImages(t *testing.T) {
	f := newGatewayFixture(t, 100)
	f.queue.statuses = completedAfter(1)
	f.queue.result = []byte(`{"images":[{"url":"https://fal.media/files/a.png"}]}`)
	f.history.err = errors.New("db down")

	out, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, HistorySaveWarning, out.Warning)
	assert.Nil(t, out.Generation)
	assert.Equal(t, []string{"https://fal.media/files/a.png"}, out.Images)
	assert.Equal(t, 5, out.CreditsRemaining)
}

type failingDebitLedger struct {
	balance int
}

func (l *failingDebitLedger) CheckAffordability(ctx context.Context, userID uint, action entitlements.Action) (credits.Affordability, error) {
	return credits.Affordability{Affordable: true, Balance: l.balance, Cost: 95}, nil
}

func (l *failingDebitLedger) Debit(ctx context.Context, userID uint, action entitlements.Action) (int, error) {
	return 0, credits.ErrInsufficientCredits
}

func TestGenerateAvatarDebitFailureAfterSuccessKeepsAssets(t *testing.T) {
	queue := &fakeQueue{
		statuses: completedAfter(1),
		result:   []byte(`{"images":[{"url":"https://fal.media/files/a.png"}]}`),
	}
	history := &fakeAvatarHistory{}
	poller := &Poller{MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
	g := NewGateway(&failingDebitLedger{balance: 120}, queue, history, poller)

	out, err := g.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://fal.media/files/a.png"}, out.Images)
	assert.Equal(t, 120, out.CreditsRemaining)
	assert.Len(t, history.saved, 1)
}

func TestGenerateAvatarSchedulesArchive(t *testing.T) {
	f := newGatewayFixture(t, 100)
	f.queue.statuses = completedAfter(1)
	f.queue.result = []byte(`{"images":[{"url":"https://fal.media/files/a.png"}]}`)
	archiver := &fakeArchiveScheduler{}
	f.gateway.SetArchiver(archiver)

	out, err := f.gateway.GenerateAvatar(context.Background(), 1, AvatarRequest{Prompt: "x"})
	require.NoError(t, err)
	require.Len(t, archiver.scheduled, 1)
	assert.Same(t, out.Generation, archiver.scheduled[0])
}

func TestPollerStopsOnCancelledContext(t *testing.T) {
	queue := &fakeQueue{statuses: []QueueStatus{{Status: QueueStatusInQueue}}}
	p := &Poller{Interval: time.Hour, MaxAttempts: 5}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, attempts, err := p.Wait(ctx, queue, Ticket{StatusURL: "s", ResponseURL: "r"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
	assert.Equal(t, 0, queue.polls)
}
