package progression

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equilibrio-app/equilibrio-engine/internal/application/command"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/query"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress/progresstest"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

type nopPublisher struct{}

func (nopPublisher) Publish(shared.Event) error { return nil }

type staticContent struct {
	template *track.DailyTemplate
}

func (s *staticContent) GetDailyTemplate(_ context.Context, slug track.Slug, day int) (*track.DailyTemplate, error) {
	if s.template == nil {
		return nil, track.ErrTemplateNotFound
	}
	cp := *s.template
	cp.TrackSlug = slug
	cp.DayNumber = day
	return &cp, nil
}

func (s *staticContent) GetRules(_ context.Context, _ track.Slug, _ int) ([]personalization.Rule, error) {
	return nil, nil
}

// failingProvider simulates a profile service outage.
type failingProvider struct{ calls int }

func (p *failingProvider) GetAttributes(context.Context, string) (personalization.UserAttributes, error) {
	p.calls++
	return personalization.UserAttributes{}, errors.New("profile service timeout")
}

func newFacade(t *testing.T, repo progress.Repository, attrs AttributeProvider) *Facade {
	t.Helper()
	catalog, err := track.NewCatalog([]track.Definition{
		{Slug: "reinicio", Title: "Reinicio", DurationDays: 7, LevelPointQuantum: 100},
	})
	require.NoError(t, err)

	content := &staticContent{template: &track.DailyTemplate{
		Title:     "Primer paso",
		MaxPoints: 50,
		Activities: []track.Activity{
			{Title: "Respiración", Points: 20, Required: true},
			{Title: "Diario", Points: 10, Required: false},
		},
	}}
	resolver := personalization.NewResolver(catalog, content, content, nil)
	bus := nopPublisher{}

	return NewFacade(
		command.NewCompleteActivityHandler(catalog, repo, resolver, bus),
		command.NewCompleteDayHandler(catalog, repo, resolver, nil, bus, nil),
		command.NewUncompleteActivityHandler(catalog, repo, bus),
		query.NewGetDayContentHandler(resolver),
		query.NewGetTrackStateHandler(catalog, repo, resolver),
		attrs,
		nil,
	)
}

func TestFacade_CompleteActivityRoundTrip(t *testing.T) {
	f := newFacade(t, progresstest.NewRepository(), nil)
	ctx := context.Background()

	resp := f.CompleteActivity(ctx, "user-1", "reinicio", 1, 0)
	assert.Equal(t, CodeOK, resp.Code)
	assert.True(t, resp.Accepted)
	assert.Equal(t, 20, resp.PointsEarned)

	// Same request again reports the existing result without changing anything.
	resp = f.CompleteActivity(ctx, "user-1", "reinicio", 1, 0)
	assert.Equal(t, CodeAlreadyCompleted, resp.Code)
	assert.False(t, resp.Accepted)
	assert.Equal(t, 20, resp.PointsEarned)
	assert.Equal(t, 20, resp.TotalPoints)
	assert.Empty(t, resp.Error)
}

func TestFacade_CompleteDayFlow(t *testing.T) {
	f := newFacade(t, progresstest.NewRepository(), nil)
	ctx := context.Background()

	// Day not started: finishing it is gated.
	_ = f.CompleteActivity(ctx, "user-1", "reinicio", 1, 1)
	resp := f.CompleteDay(ctx, "user-1", "reinicio", 1)
	assert.Equal(t, CodeIncompleteDay, resp.Code)
	assert.NotEmpty(t, resp.Error)

	// Finish the required activity, then the day goes through.
	_ = f.CompleteActivity(ctx, "user-1", "reinicio", 1, 0)
	resp = f.CompleteDay(ctx, "user-1", "reinicio", 1)
	assert.Equal(t, CodeOK, resp.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, 50, resp.PointsEarned)
	assert.Equal(t, 80, resp.TotalPoints)
	assert.Equal(t, 2, resp.NewDay)

	// Re-finalizing is the idempotent no-op.
	resp = f.CompleteDay(ctx, "user-1", "reinicio", 1)
	assert.Equal(t, CodeAlreadyCompleted, resp.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, 80, resp.TotalPoints)
}

func TestFacade_UncompleteAfterFinalizationConflicts(t *testing.T) {
	f := newFacade(t, progresstest.NewRepository(), nil)
	ctx := context.Background()

	_ = f.CompleteActivity(ctx, "user-1", "reinicio", 1, 0)
	require.Equal(t, CodeOK, f.CompleteDay(ctx, "user-1", "reinicio", 1).Code)

	resp := f.UncompleteActivity(ctx, "user-1", "reinicio", 1, 0)
	assert.Equal(t, CodeConflict, resp.Code)
	assert.NotEmpty(t, resp.Error)
}

func TestFacade_CodeMapping(t *testing.T) {
	f := newFacade(t, progresstest.NewRepository(), nil)
	ctx := context.Background()

	t.Run("invalid argument", func(t *testing.T) {
		resp := f.CompleteActivity(ctx, "", "reinicio", 1, 0)
		assert.Equal(t, CodeInvalidArgument, resp.Code)

		resp = f.CompleteActivity(ctx, "user-1", "otro", 1, 0)
		assert.Equal(t, CodeInvalidArgument, resp.Code)
	})

	t.Run("not found", func(t *testing.T) {
		resp := f.GetTrackState(ctx, "nadie", "reinicio")
		assert.Equal(t, CodeNotFound, resp.Code)
		assert.Nil(t, resp.State)

		undo := f.UncompleteActivity(ctx, "nadie", "reinicio", 1, 0)
		assert.Equal(t, CodeNotFound, undo.Code)
	})
}

func TestFacade_StorageOutageMapsToUnavailable(t *testing.T) {
	repo := &unavailableRepo{Repository: progresstest.NewRepository()}
	f := newFacade(t, repo, nil)

	resp := f.CompleteActivity(context.Background(), "user-1", "reinicio", 1, 0)
	assert.Equal(t, CodeUnavailable, resp.Code)
}

// unavailableRepo fails every aggregate read the way the postgres layer
// reports an outage.
type unavailableRepo struct {
	progress.Repository
}

func (r *unavailableRepo) GetProgress(context.Context, string, track.Slug) (*progress.UserTrackProgress, error) {
	return nil, shared.WrapError("progress_store", "get_progress", shared.ErrServiceUnavailable,
		"storage operation failed", errors.New("connection refused"))
}

func TestFacade_ProfileOutageDegradesToBaseContent(t *testing.T) {
	provider := &failingProvider{}
	f := newFacade(t, progresstest.NewRepository(), provider)

	resp := f.GetDayContent(context.Background(), "user-1", "reinicio", 1)
	require.Equal(t, CodeOK, resp.Code)
	require.NotNil(t, resp.Content)

	assert.Equal(t, 1, provider.calls)
	assert.False(t, resp.Content.Personalized)
	assert.Equal(t, "Primer paso", resp.Content.Title)
}

func TestFacade_GetDayContentPastEnd(t *testing.T) {
	f := newFacade(t, progresstest.NewRepository(), nil)

	resp := f.GetDayContent(context.Background(), "user-1", "reinicio", 9)
	require.Equal(t, CodeOK, resp.Code)
	assert.True(t, resp.Content.TrackComplete)
}
