package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// MedicalCenter is the center a profile belongs to.
type MedicalCenter struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Region   string `json:"region"`
	IsActive bool   `json:"is_active"`
}

// Profile is the account view shown to the logged in user.
type Profile struct {
	ID        string         `json:"id"`
	Email     string         `json:"email,omitempty"`
	FullName  string         `json:"full_name"`
	Role      models.Role    `json:"role"`
	CenterID  string         `json:"center_id,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Center    *MedicalCenter `json:"medical_centers,omitempty"`
}

const profileSelect = "*,medical_centers(id,name,region,is_active)"

// ProfileClient reads profiles from the remote REST endpoint. Repeated
// failures open the breaker so callers fall back without waiting on timeouts.
type ProfileClient struct {
	httpClient *resty.Client
	breaker    *gobreaker.CircuitBreaker[Profile]
	logger     *zap.Logger
}

type ProfileClientConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func NewProfileClient(cfg ProfileClientConfig, logger *zap.Logger) *ProfileClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryWaitTime <= 0 {
		cfg.RetryWaitTime = 200 * time.Millisecond
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(4*cfg.RetryWaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("apikey", cfg.APIKey).SetAuthToken(cfg.APIKey)
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[Profile](gobreaker.Settings{
		Name:    "profile-api",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProfileNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &ProfileClient{httpClient: client, breaker: breaker, logger: logger}
}

// Profile fetches one profile with its medical center.
func (c *ProfileClient) Profile(ctx context.Context, userID string) (Profile, error) {
	return c.breaker.Execute(func() (Profile, error) {
		return c.fetch(ctx, userID)
	})
}

func (c *ProfileClient) fetch(ctx context.Context, userID string) (Profile, error) {
	var rows []Profile
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"id":     "eq." + userID,
			"select": profileSelect,
		}).
		SetResult(&rows).
		Get("/rest/v1/profiles")
	if err != nil {
		c.logger.Error("profile API call failed", zap.String("user_id", userID), zap.Error(err))
		return Profile{}, fmt.Errorf("failed to call profile API: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("profile API returned error",
			zap.String("user_id", userID),
			zap.Int("status_code", resp.StatusCode()))
		return Profile{}, fmt.Errorf("profile API error: status %d", resp.StatusCode())
	}
	if len(rows) == 0 {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	return rows[0], nil
}

// ProfileSource answers profile lookups.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// Profiles prefers the remote service and falls back to the local directory.
type Profiles struct {
	remote ProfileSource
	local  *Directory
	logger *zap.Logger
}

// NewProfiles builds the resolver; remote may be nil.
func NewProfiles(remote ProfileSource, local *Directory, logger *zap.Logger) *Profiles {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiles{remote: remote, local: local, logger: logger}
}

func (p *Profiles) Profile(ctx context.Context, userID string) (Profile, error) {
	if p.remote != nil {
		prof, err := p.remote.Profile(ctx, userID)
		if err == nil {
			return prof, nil
		}
		p.logger.Warn("remote profile unavailable, using local directory",
			zap.String("user_id", userID), zap.Error(err))
	}

	u, err := p.local.FindByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CenterID:  u.CenterID,
		AvatarURL: u.AvatarURL,
	}, nil
}
