package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andrzw/marketsync/internal/core/domain"
)

// RefreshBuffer is how long before expiry a token is refreshed. The observed
// marketplace invalidates sessions aggressively, so refresh well ahead.
const RefreshBuffer = 2 * time.Hour

// TokenCache persists a token across process restarts. A nil cache is valid;
// the source then keeps the token in memory only.
type TokenCache interface {
	Load(ctx context.Context) (domain.TokenRecord, bool, error)
	Store(ctx context.Context, tok domain.TokenRecord) error
}

// AuthConfig holds the credential settings for the token endpoint.
type AuthConfig struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// TokenSource implements TokenProvider with transparent refresh.
type TokenSource struct {
	cfg   AuthConfig
	http  *http.Client
	cache TokenCache

	mu  sync.Mutex
	tok domain.TokenRecord
}

// NewTokenSource creates a token source. cache may be nil.
func NewTokenSource(cfg AuthConfig, cache TokenCache) *TokenSource {
	return &TokenSource{
		cfg:   cfg,
		http:  &http.Client{Timeout: 15 * time.Second},
		cache: cache,
	}
}

// AccessToken returns a token valid for at least RefreshBuffer, refreshing it
// through the auth endpoint when the held one is too close to expiry.
func (s *TokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok.ValidFor(RefreshBuffer) {
		return s.tok.AccessToken, nil
	}

	if s.cache != nil {
		tok, ok, err := s.cache.Load(ctx)
		if err != nil {
			slog.Warn("token cache load failed", "error", err)
		} else if ok && tok.ValidFor(RefreshBuffer) {
			s.tok = tok
			return tok.AccessToken, nil
		}
	}

	tok, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}
	s.tok = tok

	if s.cache != nil {
		if err := s.cache.Store(ctx, tok); err != nil {
			slog.Warn("token cache store failed", "error", err)
		}
	}
	return tok.AccessToken, nil
}

func (s *TokenSource) refresh(ctx context.Context) (domain.TokenRecord, error) {
	form := url.Values{}
	if s.tok.RefreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", s.tok.RefreshToken)
	} else {
		form.Set("grant_type", "client_credentials")
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.TokenRecord{}, &domain.TransportError{
			Status: resp.StatusCode, Endpoint: s.cfg.TokenURL, Body: string(body),
		}
	}

	var wire struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return domain.TokenRecord{}, &domain.DeserializationError{Endpoint: s.cfg.TokenURL, Err: err}
	}

	return domain.TokenRecord{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(wire.ExpiresIn) * time.Second),
	}, nil
}

// StaticToken is a TokenProvider returning a fixed token. Used in tests and
// for destinations authenticated with long-lived API keys.
type StaticToken string

func (t StaticToken) AccessToken(context.Context) (string, error) {
	return string(t), nil
}
