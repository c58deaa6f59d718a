package redis

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

type fakeSource struct {
	templateCalls atomic.Int64
	ruleCalls     atomic.Int64

	template *track.DailyTemplate
	rules    []personalization.Rule
}

func (s *fakeSource) GetDailyTemplate(_ context.Context, slug track.Slug, day int) (*track.DailyTemplate, error) {
	s.templateCalls.Add(1)
	if s.template == nil {
		return nil, track.ErrTemplateNotFound
	}
	return s.template, nil
}

func (s *fakeSource) GetRules(_ context.Context, _ track.Slug, _ int) ([]personalization.Rule, error) {
	s.ruleCalls.Add(1)
	return s.rules, nil
}

func TestCachedContentRepository_NilCachePassesThrough(t *testing.T) {
	src := &fakeSource{
		template: &track.DailyTemplate{Title: "Respira", MaxPoints: 50},
		rules:    []personalization.Rule{{ID: "r1"}},
	}
	repo := NewCachedContentRepository(src, nil, nil)
	require.True(t, repo.Disabled)

	slug, err := track.ParseSlug("reinicio")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tpl, err := repo.GetDailyTemplate(context.Background(), slug, 1)
		require.NoError(t, err)
		assert.Equal(t, "Respira", tpl.Title)

		rules, err := repo.GetRules(context.Background(), slug, 1)
		require.NoError(t, err)
		assert.Len(t, rules, 1)
	}

	// Without a cache every read hits the store.
	assert.EqualValues(t, 3, src.templateCalls.Load())
	assert.EqualValues(t, 3, src.ruleCalls.Load())
}

func TestCachedContentRepository_NilCacheMissingTemplate(t *testing.T) {
	repo := NewCachedContentRepository(&fakeSource{}, nil, nil)

	slug, err := track.ParseSlug("reinicio")
	require.NoError(t, err)

	_, err = repo.GetDailyTemplate(context.Background(), slug, 3)
	assert.ErrorIs(t, err, track.ErrTemplateNotFound)
}

func TestCachedContentRepository_InvalidateDisabledIsNoop(t *testing.T) {
	repo := NewCachedContentRepository(&fakeSource{}, nil, nil)

	slug, err := track.ParseSlug("reinicio")
	require.NoError(t, err)

	assert.NoError(t, repo.InvalidateTrack(context.Background(), slug))
}

func TestCachedContentRepository_WithTTLs(t *testing.T) {
	repo := NewCachedContentRepository(&fakeSource{}, nil, nil)

	repo.WithTTLs(0, 0)
	assert.Equal(t, TTLTemplate, repo.templateTTL)
	assert.Equal(t, TTLRules, repo.rulesTTL)

	repo.WithTTLs(2*TTLTemplate, 3*TTLRules)
	assert.Equal(t, 2*TTLTemplate, repo.templateTTL)
	assert.Equal(t, 3*TTLRules, repo.rulesTTL)
}
