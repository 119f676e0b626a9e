package view

import (
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// RevealedRow is one line of the creator's revealed-votes table.
type RevealedRow struct {
	Voter     string `json:"voter"`
	Vote      string `json:"vote"`
	Timestamp string `json:"timestamp"`
}

// CreatorPanel is the creator's control surface for one market.
type CreatorPanel struct {
	MarketID                uint64             `json:"market_id"`
	IsCreator               bool               `json:"is_creator"`
	Notice                  string             `json:"notice,omitempty"`
	PhaseLabel              string             `json:"phase_label"`
	CanTransitionToReveal   bool               `json:"can_transition_to_reveal"`
	CanTransitionToResolved bool               `json:"can_transition_to_resolved"`
	CanResolve              bool               `json:"can_resolve"`
	Outcome                 string             `json:"outcome,omitempty"`
	Counts                  *domain.VoteCounts `json:"counts,omitempty"`
	Revealed                []RevealedRow      `json:"revealed,omitempty"`
}

// CanTransitionToReveal reports whether the commit window has closed on a
// market still in Commit.
func CanTransitionToReveal(m domain.Market, now time.Time) bool {
	return m.State == domain.MarketStateCommit && !now.Before(m.CommitEndTime)
}

// CanTransitionToResolved reports whether the reveal window has closed on a
// market still in Reveal.
func CanTransitionToResolved(m domain.Market, now time.Time) bool {
	return m.State == domain.MarketStateReveal && !now.Before(m.RevealEndTime)
}

// CanResolve reports whether an outcome can be recorded.
func CanResolve(m domain.Market) bool {
	return m.State == domain.MarketStateResolved && !m.IsResolved
}

// NewCreatorPanel renders the panel for viewer. counts and revealed may be
// nil when the contract withheld them.
func NewCreatorPanel(m domain.Market, viewer common.Address, counts *domain.VoteCounts, revealed []domain.RevealedVote, now time.Time) CreatorPanel {
	label, _ := PhaseLabel(m)
	p := CreatorPanel{
		MarketID:   m.ID,
		IsCreator:  viewer != (common.Address{}) && SameAddress(viewer, m.Creator),
		PhaseLabel: label,
	}
	if !p.IsCreator {
		p.Notice = domain.ErrorMessages[domain.TagOnlyCreator]
		return p
	}

	p.CanTransitionToReveal = CanTransitionToReveal(m, now)
	p.CanTransitionToResolved = CanTransitionToResolved(m, now)
	p.CanResolve = CanResolve(m)
	if m.IsResolved {
		p.Outcome = OutcomeLabel(m.Outcome)
	}
	p.Counts = counts
	if revealed != nil {
		p.Revealed = make([]RevealedRow, 0, len(revealed))
		for _, v := range revealed {
			p.Revealed = append(p.Revealed, RevealedRow{
				Voter:     ShortAddress(v.Voter),
				Vote:      VoteLabel(v.Vote),
				Timestamp: Timestamp(v.Timestamp),
			})
		}
	}
	return p
}
