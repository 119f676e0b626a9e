package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"

	"github.com/alanyoungcy/ppmclient/internal/app"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/service"
)

var (
	errMissingMarket = errors.New("missing MARKET_ID argument")
	errNoWallet      = errors.New("no wallet: set wallet.private_key or pass --wallet")
)

func printJSON(handle io.Writer, message interface{}) error {
	b, err := json.MarshalIndent(message, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(handle, "%s\n", b)
	return nil
}

// withDeps wires the client for one command and tears it down afterwards.
func withDeps(c *cli.Context, fn func(m *metadata, deps *app.Dependencies) error) error {
	m := meta(c)
	deps, cleanup, err := app.Wire(m.ctx, m.cfg, m.logger)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(m, deps)
}

func marketArg(c *cli.Context) (uint64, error) {
	s := c.Args().First()
	if s == "" {
		return 0, errMissingMarket
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid market id %q", s)
	}
	return id, nil
}

// viewer is --wallet when given, otherwise the configured wallet.
func viewer(c *cli.Context, deps *app.Dependencies) (common.Address, error) {
	s := c.String("wallet")
	if s == "" {
		return deps.Wallet, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid wallet address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseVoteFlag(c *cli.Context, name string) (domain.Vote, error) {
	v, err := domain.ParseVote(c.String(name))
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}

// printOutcome reports an action result. Failures become an exit error
// carrying the message a user should see.
func printOutcome(m *metadata, out service.Outcome, err error) error {
	if err != nil {
		msg := out.Message
		if msg == "" {
			msg = domain.HumanMessage(err, err.Error())
		}
		if out.NeedsSecret {
			msg += "\nPass --vote and --secret to reveal manually."
		}
		if m.json {
			printJSON(m.w, out)
		}
		return cli.NewExitError(msg, 1)
	}
	if m.json {
		return printJSON(m.w, out)
	}

	fmt.Fprintln(m.w, out.Message)
	if out.TxHash != "" {
		fmt.Fprintf(m.w, "tx:     %s\n", out.TxHash)
	}
	if out.Secret != "" {
		fmt.Fprintf(m.w, "secret: %s\n", out.Secret)
		fmt.Fprintln(m.e, "Write the secret down. It is needed to reveal if the local record is lost.")
	}
	return nil
}
