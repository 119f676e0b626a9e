package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"

	"github.com/alanyoungcy/ppmclient/internal/app"
	"github.com/alanyoungcy/ppmclient/internal/view"
)

func runMarkets(c *cli.Context) error {
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		wallet, err := viewer(c, deps)
		if err != nil {
			return err
		}
		cards, err := deps.Markets.Cards(m.ctx, wallet)
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, cards)
		}
		if len(cards) == 0 {
			fmt.Fprintln(m.w, "No markets yet.")
			return nil
		}
		return view.RenderCards(m.w, cards)
	})
}

func runMarket(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		wallet, err := viewer(c, deps)
		if err != nil {
			return err
		}
		card, err := deps.Markets.Card(m.ctx, id, wallet)
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, card)
		}
		return view.RenderCard(m.w, card)
	})
}

func runStatus(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		wallet, err := viewer(c, deps)
		if err != nil {
			return err
		}
		if wallet == (common.Address{}) {
			return errNoWallet
		}
		st, err := deps.Markets.UserStatus(m.ctx, id, wallet)
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, st)
		}
		fmt.Fprintf(m.w, "wallet:    %s\n", wallet.Hex())
		fmt.Fprintf(m.w, "committed: %t\n", st.HasCommitted)
		fmt.Fprintf(m.w, "revealed:  %t\n", st.HasRevealed)
		return nil
	})
}

func runPanel(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		wallet, err := viewer(c, deps)
		if err != nil {
			return err
		}
		panel, err := deps.Markets.CreatorPanel(m.ctx, id, wallet)
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, panel)
		}
		return view.RenderPanel(m.w, panel)
	})
}
