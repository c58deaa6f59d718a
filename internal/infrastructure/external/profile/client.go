// Package profile implements the user-profile service client.
// The profile service owns assessment results and profile fields; the engine
// only reads an attribute snapshot per request for rule evaluation.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/pkg/circuitbreaker"
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
	"github.com/equilibrio-app/equilibrio-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the profile service client.
type ClientConfig struct {
	// BaseURL is the profile service base URL.
	BaseURL string

	// APIKey authenticates the engine against the profile service.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// ErrProfileNotFound is returned when no profile exists for the user.
var ErrProfileNotFound = errors.New("profile: not found")

// attributesDTO is the wire form of a profile snapshot.
type attributesDTO struct {
	AssessmentScore int               `json:"assessment_score"`
	Category        string            `json:"category"`
	Profile         map[string]string `json:"profile"`
}

// Client fetches attribute snapshots from the profile service. Calls go
// through a retrier and a circuit breaker; when the circuit is open the
// caller falls back to an empty snapshot.
type Client struct {
	config  ClientConfig
	http    *http.Client
	log     *logger.Logger
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
}

// NewClient creates a new profile service client.
func NewClient(config ClientConfig) *Client {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("profile_client"))

	breaker := circuitbreaker.ProfileAPIBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	})

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		log:     log,
		retrier: retry.ProfileAPIRetrier(),
		breaker: breaker,
	}
}

// GetAttributes implements progression.AttributeProvider.
// A missing profile is not an error: users who skipped the assessment get an
// empty snapshot and see base content.
func (c *Client) GetAttributes(ctx context.Context, userID string) (personalization.UserAttributes, error) {
	var dto attributesDTO

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			fetched, err := c.fetch(ctx, userID)
			if err != nil {
				if errors.Is(err, ErrProfileNotFound) {
					return retry.Permanent(err)
				}
				return retry.Retryable(err)
			}
			dto = fetched
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return personalization.UserAttributes{}, nil
		}
		return personalization.UserAttributes{}, fmt.Errorf("profile: get attributes for %s: %w", userID, err)
	}

	return personalization.UserAttributes{
		AssessmentScore: dto.AssessmentScore,
		Category:        dto.Category,
		Profile:         dto.Profile,
	}, nil
}

// fetch performs one HTTP round trip.
func (c *Client) fetch(ctx context.Context, userID string) (attributesDTO, error) {
	var dto attributesDTO

	endpoint := fmt.Sprintf("%s/api/v1/users/%s/attributes", c.config.BaseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return dto, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dto, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return dto, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return dto, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return dto, fmt.Errorf("decode response: %w", err)
	}
	return dto, nil
}
