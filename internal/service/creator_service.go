package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Default phase lengths offered when creating a market.
const (
	DefaultCommitDuration = 300 * time.Second
	DefaultRevealDuration = 300 * time.Second
)

// CreateMarketInput is the create-market form.
type CreateMarketInput struct {
	Description    string        `json:"description" validate:"required"`
	CommitDuration time.Duration `json:"commit_duration" validate:"gte=1s"`
	RevealDuration time.Duration `json:"reveal_duration" validate:"gte=1s"`
}

// CreatorService runs the creator-side actions: create, transition and
// resolve.
type CreatorService struct {
	chain    Chain
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCreatorService creates a CreatorService.
func NewCreatorService(chain Chain, logger *slog.Logger) *CreatorService {
	return &CreatorService{
		chain:    chain,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "creator_service")),
	}
}

// Validate checks the form locally. Durations are whole seconds on chain.
func (s *CreatorService) Validate(in *CreateMarketInput) error {
	in.Description = strings.TrimSpace(in.Description)
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("creator_service: validate: %w", err)
	}
	switch f := verrs[0]; f.Field() {
	case "Description":
		return &domain.InputError{Field: "description", Message: "Description is required"}
	default:
		return &domain.InputError{
			Field:   strings.ToLower(f.Field()),
			Message: domain.ErrorMessages[domain.TagInvalidTimeParameters],
		}
	}
}

// CreateMarket validates and submits a new market.
func (s *CreatorService) CreateMarket(ctx context.Context, in CreateMarketInput) (domain.TxResult, uint64, error) {
	if err := s.Validate(&in); err != nil {
		return domain.TxResult{}, 0, err
	}
	tx, id, err := s.chain.CreateMarket(ctx, in.Description, in.CommitDuration, in.RevealDuration)
	if err != nil {
		return tx, 0, fmt.Errorf("creator_service: create: %w", err)
	}
	s.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", id),
		slog.String("tx", tx.Hash.Hex()),
	)
	return tx, id, nil
}

// TransitionToReveal closes the commit phase.
func (s *CreatorService) TransitionToReveal(ctx context.Context, marketID uint64) (domain.TxResult, error) {
	tx, err := s.chain.TransitionToReveal(ctx, marketID)
	if err != nil {
		return tx, fmt.Errorf("creator_service: transition to reveal: %w", err)
	}
	return tx, nil
}

// TransitionToResolved closes the reveal phase.
func (s *CreatorService) TransitionToResolved(ctx context.Context, marketID uint64) (domain.TxResult, error) {
	tx, err := s.chain.TransitionToResolved(ctx, marketID)
	if err != nil {
		return tx, fmt.Errorf("creator_service: transition to resolved: %w", err)
	}
	return tx, nil
}

// Resolve records the outcome. A nil outcome is a local input error.
func (s *CreatorService) Resolve(ctx context.Context, marketID uint64, outcome *bool) (domain.TxResult, error) {
	if outcome == nil {
		return domain.TxResult{}, &domain.InputError{Field: "outcome", Message: "Please select an outcome"}
	}
	tx, err := s.chain.ResolveMarket(ctx, marketID, *outcome)
	if err != nil {
		return tx, fmt.Errorf("creator_service: resolve: %w", err)
	}
	return tx, nil
}
