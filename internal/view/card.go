package view

import (
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// PhaseColor is the badge colour of a phase.
type PhaseColor string

const (
	ColorBlue   PhaseColor = "blue"
	ColorOrange PhaseColor = "orange"
	ColorGreen  PhaseColor = "green"
)

// Reveal-area statuses.
const (
	RevealAction      = "Reveal Vote"
	RevealAlreadyDone = "Already Revealed"
	RevealNoCommit    = "Did Not Commit"
	RevealCommitted   = "Committed"
)

// MarketCard is the rendered form of one market for one viewer.
type MarketCard struct {
	ID          uint64     `json:"id"`
	Description string     `json:"description"`
	Creator     string     `json:"creator"`
	PhaseLabel  string     `json:"phase_label"`
	PhaseColor  PhaseColor `json:"phase_color"`
	TimeLeft    string     `json:"time_left,omitempty"`
	CanCommit   bool       `json:"can_commit"`
	CanReveal   bool       `json:"can_reveal"`
	// RevealStatus is set only during the Reveal phase.
	RevealStatus string `json:"reveal_status,omitempty"`
	Outcome      string `json:"outcome,omitempty"`
	UserBadge    string `json:"user_badge,omitempty"`
	IsCreator    bool   `json:"is_creator"`
	YesVotes     uint64 `json:"yes_votes"`
	NoVotes      uint64 `json:"no_votes"`
}

// PhaseLabel returns the phase badge text and colour.
func PhaseLabel(m domain.Market) (string, PhaseColor) {
	switch m.State {
	case domain.MarketStateCommit:
		return "Commit Phase", ColorBlue
	case domain.MarketStateReveal:
		return "Reveal Phase", ColorOrange
	}
	if m.IsResolved {
		return "Resolved: " + OutcomeLabel(m.Outcome), ColorGreen
	}
	return "Resolved (awaiting outcome)", ColorGreen
}

// CanCommit reports whether commit actions should be enabled. A nil status
// (unknown, e.g. no wallet) counts as not committed.
func CanCommit(m domain.Market, status *domain.UserStatus, now time.Time) bool {
	return m.State == domain.MarketStateCommit &&
		now.Before(m.CommitEndTime) &&
		(status == nil || !status.HasCommitted)
}

// CanReveal reports whether the reveal action should be enabled.
func CanReveal(m domain.Market, status *domain.UserStatus, now time.Time) bool {
	return m.State == domain.MarketStateReveal &&
		now.Before(m.RevealEndTime) &&
		status != nil && status.HasCommitted && !status.HasRevealed
}

// NewMarketCard renders m for viewer. status may be nil when the viewer's
// participation is unknown.
func NewMarketCard(m domain.Market, status *domain.UserStatus, viewer common.Address, now time.Time) MarketCard {
	label, color := PhaseLabel(m)
	card := MarketCard{
		ID:          m.ID,
		Description: m.Description,
		Creator:     ShortAddress(m.Creator),
		PhaseLabel:  label,
		PhaseColor:  color,
		CanCommit:   CanCommit(m, status, now),
		CanReveal:   CanReveal(m, status, now),
		IsCreator:   viewer != (common.Address{}) && SameAddress(viewer, m.Creator),
		YesVotes:    m.YesVotes,
		NoVotes:     m.NoVotes,
	}

	switch m.State {
	case domain.MarketStateCommit:
		card.TimeLeft = TimeRemaining(m.CommitEndTime, now)
	case domain.MarketStateReveal:
		card.TimeLeft = TimeRemaining(m.RevealEndTime, now)
		card.RevealStatus = revealStatus(card.CanReveal, status)
	case domain.MarketStateResolved:
		if m.IsResolved {
			card.Outcome = OutcomeLabel(m.Outcome)
		}
	}

	if status != nil && status.HasCommitted {
		if status.HasRevealed {
			card.UserBadge = "✓ Revealed"
		} else {
			card.UserBadge = "✓ Committed"
		}
	}
	return card
}

func revealStatus(canReveal bool, status *domain.UserStatus) string {
	switch {
	case canReveal:
		return RevealAction
	case status != nil && status.HasRevealed:
		return RevealAlreadyDone
	case status != nil && !status.HasCommitted:
		return RevealNoCommit
	default:
		return RevealCommitted
	}
}
