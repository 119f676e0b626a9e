package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/alanyoungcy/ppmclient/internal/app"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/service"
)

func runCreate(c *cli.Context) error {
	in := service.CreateMarketInput{
		Description:    strings.TrimSpace(c.String("description")),
		CommitDuration: c.Duration("commit"),
		RevealDuration: c.Duration("reveal"),
	}
	if in.Description == "" {
		return fmt.Errorf("--description is required")
	}
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		out, err := deps.Actions.CreateMarket(m.ctx, in)
		return printOutcome(m, out, err)
	})
}

func runCommit(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}
	vote, err := parseVoteFlag(c, "vote")
	if err != nil {
		return err
	}
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		out, err := deps.Actions.Commit(m.ctx, id, vote)
		return printOutcome(m, out, err)
	})
}

func runReveal(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}

	var manual *service.ManualReveal
	if secret := strings.TrimSpace(c.String("secret")); secret != "" {
		vote, err := parseVoteFlag(c, "vote")
		if err != nil {
			return err
		}
		manual = &service.ManualReveal{Vote: vote, Secret: secret}
	}

	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		out, err := deps.Actions.Reveal(m.ctx, id, manual)
		return printOutcome(m, out, err)
	})
}

func runTransition(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}
	to := strings.ToLower(strings.TrimSpace(c.String("to")))
	if to != "reveal" && to != "resolved" {
		return fmt.Errorf("--to must be reveal or resolved, got %q", c.String("to"))
	}

	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		var (
			out service.Outcome
			err error
		)
		if to == "reveal" {
			out, err = deps.Actions.TransitionToReveal(m.ctx, id)
		} else {
			out, err = deps.Actions.TransitionToResolved(m.ctx, id)
		}
		return printOutcome(m, out, err)
	})
}

func runResolve(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}

	var outcome *bool
	if c.String("outcome") != "" {
		vote, err := parseVoteFlag(c, "outcome")
		if err != nil {
			return err
		}
		yes := vote == domain.VoteYes
		outcome = &yes
	}

	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		out, err := deps.Actions.Resolve(m.ctx, id, outcome)
		return printOutcome(m, out, err)
	})
}
