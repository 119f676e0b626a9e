package view

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alanyoungcy/ppmclient/internal/domain"
)

// RenderCards writes a market list as an aligned table.
func RenderCards(w io.Writer, cards []MarketCard) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPHASE\tTIME LEFT\tACTIONS\tYOU\tDESCRIPTION")
	for _, c := range cards {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.PhaseLabel, dash(c.TimeLeft), actions(c), dash(c.UserBadge), c.Description)
	}
	return tw.Flush()
}

// RenderCard writes one market in detail.
func RenderCard(w io.Writer, c MarketCard) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Market\t#%d\n", c.ID)
	fmt.Fprintf(tw, "Description\t%s\n", c.Description)
	fmt.Fprintf(tw, "Creator\t%s\n", c.Creator)
	fmt.Fprintf(tw, "Phase\t%s\n", c.PhaseLabel)
	if c.TimeLeft != "" {
		fmt.Fprintf(tw, "Time left\t%s\n", c.TimeLeft)
	}
	if c.RevealStatus != "" {
		fmt.Fprintf(tw, "Reveal\t%s\n", c.RevealStatus)
	}
	if c.Outcome != "" {
		fmt.Fprintf(tw, "Outcome\t%s\n", c.Outcome)
	}
	fmt.Fprintf(tw, "Actions\t%s\n", actions(c))
	if c.UserBadge != "" {
		fmt.Fprintf(tw, "You\t%s\n", c.UserBadge)
	}
	if c.IsCreator {
		fmt.Fprintf(tw, "Creator tools\tppm panel %d\n", c.ID)
	}
	return tw.Flush()
}

// RenderPanel writes the creator panel.
func RenderPanel(w io.Writer, p CreatorPanel) error {
	if !p.IsCreator {
		_, err := fmt.Fprintln(w, p.Notice)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Market\t#%d\n", p.MarketID)
	fmt.Fprintf(tw, "Phase\t%s\n", p.PhaseLabel)
	fmt.Fprintf(tw, "Transition to reveal\t%s\n", yesNo(p.CanTransitionToReveal))
	fmt.Fprintf(tw, "Transition to resolved\t%s\n", yesNo(p.CanTransitionToResolved))
	fmt.Fprintf(tw, "Resolve\t%s\n", yesNo(p.CanResolve))
	if p.Outcome != "" {
		fmt.Fprintf(tw, "Outcome\t%s\n", p.Outcome)
	}
	if p.Counts != nil {
		fmt.Fprintf(tw, "Votes\tYES %d / NO %d\n", p.Counts.Yes, p.Counts.No)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(p.Revealed) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VOTER\tVOTE\tREVEALED AT")
	for _, r := range p.Revealed {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Voter, r.Vote, r.Timestamp)
	}
	return tw.Flush()
}

// RenderActivity writes an activity log, newest first as given.
func RenderActivity(w io.Writer, items []domain.Activity) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMARKET\tACTION\tSTATUS\tDETAIL")
	for _, a := range items {
		market := "-"
		if a.MarketID != nil {
			market = fmt.Sprintf("#%d", *a.MarketID)
		}
		detail := a.TxHash
		if a.Status == domain.ActivityFailed {
			detail = a.Message
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			Timestamp(a.CreatedAt), market, a.Action, a.Status, dash(detail))
	}
	return tw.Flush()
}

func actions(c MarketCard) string {
	switch {
	case c.CanCommit:
		return "commit"
	case c.CanReveal:
		return "reveal"
	}
	return "-"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "available"
	}
	return "-"
}
