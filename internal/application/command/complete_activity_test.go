package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress/progresstest"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

func newActivityHandler(t *testing.T) (*CompleteActivityHandler, *progresstest.Repository, *capturingPublisher) {
	t.Helper()
	repo := progresstest.NewRepository()
	bus := &capturingPublisher{}
	content := &staticContent{template: dayOneTemplate()}
	h := NewCompleteActivityHandler(testCatalog(t), repo, testResolver(t, content), bus)
	return h, repo, bus
}

func TestCompleteActivity_FirstContactEnrollsAndAwards(t *testing.T) {
	h, repo, bus := newActivityHandler(t)

	result, err := h.Handle(context.Background(), CompleteActivityCommand{
		UserID: "user-1", TrackSlug: "reinicio", DayNumber: 1, ActivityIndex: 0,
	})
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.NotEmpty(t, result.CompletionID)
	assert.Equal(t, 20, result.PointsEarned)
	assert.Equal(t, 20, result.TotalPoints)
	assert.Equal(t, 1, result.LevelNumber)
	assert.False(t, result.LeveledUp)

	prog, err := repo.GetProgress(context.Background(), "user-1", "reinicio")
	require.NoError(t, err)
	assert.Equal(t, 1, prog.CurrentDay)
	assert.Equal(t, 20, prog.TotalPoints)

	assert.Len(t, bus.byType(shared.EventTrackStarted), 1)
	assert.Len(t, bus.byType(shared.EventActivityCompleted), 1)
}

func TestCompleteActivity_DuplicateIsNoOp(t *testing.T) {
	h, repo, bus := newActivityHandler(t)
	cmd := CompleteActivityCommand{UserID: "user-1", TrackSlug: "reinicio", DayNumber: 1, ActivityIndex: 0}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	// The repeat reports the existing result: same row, same points.
	assert.False(t, second.Accepted)
	assert.Equal(t, first.PointsEarned, second.PointsEarned)
	assert.Equal(t, first.TotalPoints, second.TotalPoints)
	assert.Equal(t, first.CompletionID, second.CompletionID)

	prog, err := repo.GetProgress(context.Background(), "user-1", "reinicio")
	require.NoError(t, err)
	assert.Equal(t, 20, prog.TotalPoints)

	// No second completion event.
	assert.Len(t, bus.byType(shared.EventActivityCompleted), 1)
}

func TestCompleteActivity_ConcurrentRequestsAwardOnce(t *testing.T) {
	h, repo, _ := newActivityHandler(t)
	cmd := CompleteActivityCommand{UserID: "user-1", TrackSlug: "reinicio", DayNumber: 1, ActivityIndex: 1}

	const workers = 16
	accepted := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.Handle(context.Background(), cmd)
			require.NoError(t, err)
			accepted <- result.Accepted
		}()
	}
	wg.Wait()
	close(accepted)

	acceptedCount := 0
	for ok := range accepted {
		if ok {
			acceptedCount++
		}
	}
	assert.Equal(t, 1, acceptedCount)

	prog, err := repo.GetProgress(context.Background(), "user-1", "reinicio")
	require.NoError(t, err)
	assert.Equal(t, 30, prog.TotalPoints)
}

func TestCompleteActivity_LevelUp(t *testing.T) {
	repo := progresstest.NewRepository()
	bus := &capturingPublisher{}
	content := &staticContent{template: &track.DailyTemplate{
		Title: "Día intensivo",
		Activities: []track.Activity{
			{Title: "Reto mayor", Points: 120, Required: true},
		},
	}}
	h := NewCompleteActivityHandler(testCatalog(t), repo, testResolver(t, content), bus)

	result, err := h.Handle(context.Background(), CompleteActivityCommand{
		UserID: "user-1", TrackSlug: "reinicio", DayNumber: 1, ActivityIndex: 0,
	})
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, 120, result.TotalPoints)
	assert.Equal(t, 2, result.LevelNumber)
	assert.True(t, result.LeveledUp)
	assert.Len(t, bus.byType(shared.EventLevelUp), 1)
}

func TestCompleteActivity_Validation(t *testing.T) {
	h, _, _ := newActivityHandler(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  CompleteActivityCommand
	}{
		{"missing user", CompleteActivityCommand{TrackSlug: "reinicio", DayNumber: 1}},
		{"bad slug", CompleteActivityCommand{UserID: "u", TrackSlug: "NO VALIDO", DayNumber: 1}},
		{"unknown track", CompleteActivityCommand{UserID: "u", TrackSlug: "inexistente", DayNumber: 1}},
		{"day zero", CompleteActivityCommand{UserID: "u", TrackSlug: "reinicio", DayNumber: 0}},
		{"day past duration", CompleteActivityCommand{UserID: "u", TrackSlug: "reinicio", DayNumber: 8}},
		{"negative index", CompleteActivityCommand{UserID: "u", TrackSlug: "reinicio", DayNumber: 1, ActivityIndex: -1}},
		{"index out of range", CompleteActivityCommand{UserID: "u", TrackSlug: "reinicio", DayNumber: 1, ActivityIndex: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestCompleteActivity_FutureDayRejected(t *testing.T) {
	h, _, _ := newActivityHandler(t)

	// Enrolls on day 1; day 3 is not reachable yet.
	_, err := h.Handle(context.Background(), CompleteActivityCommand{
		UserID: "user-1", TrackSlug: "reinicio", DayNumber: 3, ActivityIndex: 0,
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestCompleteActivity_InactiveTrackRejected(t *testing.T) {
	h, repo, _ := newActivityHandler(t)
	ctx := context.Background()

	_, err := h.Handle(ctx, CompleteActivityCommand{
		UserID: "user-1", TrackSlug: "reinicio", DayNumber: 1, ActivityIndex: 0,
	})
	require.NoError(t, err)

	require.NoError(t, repo.SetActive(ctx, "user-1", "reinicio", false))

	_, err = h.Handle(ctx, CompleteActivityCommand{
		UserID: "user-1", TrackSlug: "reinicio", DayNumber: 1, ActivityIndex: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, progress.ErrTrackInactive)
}
