package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/logging"
)

// Service registers panels and exchanges their credentials for tokens.
type Service struct {
	repo     PanelRepository
	secret   string
	ttl      time.Duration
	params   HashParams
	logger   *logging.Logger
	now      func() time.Time
	dummyPHC string
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// JWTSecret signs access tokens. Required.
	JWTSecret string

	// TokenTTL defaults to DefaultTokenTTL.
	TokenTTL time.Duration

	// HashParams defaults to DefaultHashParams.
	HashParams *HashParams

	Logger *logging.Logger
}

// Token is the result of a successful authentication.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int       `json:"expires_in"`
	Panel       *Panel    `json:"panel"`
}

// NewService creates an auth service over repo.
func NewService(repo PanelRepository, opts ServiceOptions) (*Service, error) {
	if opts.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	params := DefaultHashParams
	if opts.HashParams != nil {
		params = *opts.HashParams
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	// Unknown panel IDs are verified against a throwaway hash so both
	// failure paths cost the same.
	dummy, err := HashSecret("unknown-panel", params)
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:     repo,
		secret:   opts.JWTSecret,
		ttl:      opts.TokenTTL,
		params:   params,
		logger:   opts.Logger,
		now:      time.Now,
		dummyPHC: dummy,
	}, nil
}

// Register creates a panel with a fresh secret. The plaintext secret is
// returned once and never stored.
func (s *Service) Register(ctx context.Context, name string, role Role, roomID uint) (*Panel, string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}
	hash, err := HashSecret(secret, s.params)
	if err != nil {
		return nil, "", fmt.Errorf("hashing panel secret: %w", err)
	}

	panel := &Panel{Name: name, SecretHash: hash, Role: role, RoomID: roomID, Active: true}
	if err := s.repo.Create(ctx, panel); err != nil {
		return nil, "", err
	}
	s.logger.Info("panel registered", "panel_id", panel.ID, "role", panel.Role, "room_id", panel.RoomID)
	return panel, secret, nil
}

// Authenticate checks a panel's credentials and issues an access token.
// Unknown IDs and wrong secrets both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, panelID, secret string) (*Token, error) {
	panel, err := s.repo.Get(ctx, panelID)
	if errors.Is(err, ErrPanelNotFound) {
		_, _ = VerifySecret(secret, s.dummyPHC) //nolint:errcheck // timing equaliser only
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading panel: %w", err)
	}

	ok, err := VerifySecret(secret, panel.SecretHash)
	if err != nil {
		return nil, fmt.Errorf("verifying panel secret: %w", err)
	}
	if !ok {
		s.logger.Warn("panel authentication failed", "panel_id", panelID)
		return nil, ErrInvalidCredentials
	}
	if !panel.Active {
		return nil, ErrPanelInactive
	}

	now := s.now()
	signed, expires, err := IssueToken(panel, s.secret, s.ttl, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Touch(ctx, panel.ID, now); err != nil {
		s.logger.Warn("recording panel last seen failed", "panel_id", panel.ID, "error", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		ExpiresIn:   int(s.ttl.Seconds()),
		Panel:       panel,
	}, nil
}

// Validate parses an access token issued by this service.
func (s *Service) Validate(token string) (*Claims, error) {
	return ParseToken(token, s.secret)
}
