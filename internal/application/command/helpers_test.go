package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// capturingPublisher collects published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// staticContent serves one fixed template for every requested day.
type staticContent struct {
	template *track.DailyTemplate
	rules    []personalization.Rule
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
	return s.rules, nil
}

// dayOneTemplate is the standard fixture: two required activities and an
// optional one, 50 bonus points on finalization.
func dayOneTemplate() *track.DailyTemplate {
	return &track.DailyTemplate{
		Title:     "Primer paso",
		Objective: "Arrancar el programa",
		MaxPoints: 50,
		Activities: []track.Activity{
			{Title: "Respiración", Points: 20, Required: true},
			{Title: "Lectura", Points: 30, Required: true},
			{Title: "Diario", Points: 10, Required: false},
		},
	}
}

func testCatalog(t *testing.T) *track.Catalog {
	t.Helper()
	catalog, err := track.NewCatalog([]track.Definition{
		{Slug: "reinicio", Title: "Reinicio", DurationDays: 7, LevelPointQuantum: 100},
	})
	require.NoError(t, err)
	return catalog
}

func testResolver(t *testing.T, content *staticContent) *personalization.Resolver {
	t.Helper()
	return personalization.NewResolver(testCatalog(t), content, content, nil)
}
