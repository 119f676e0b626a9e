package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"

	"github.com/alanyoungcy/ppmclient/internal/app"
	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/crypto"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/view"
)

func runSecret(c *cli.Context) error {
	m := meta(c)
	secret, err := commitment.GenerateSecret()
	if err != nil {
		return err
	}

	result := map[string]string{"secret": secret.String()}
	if c.String("vote") != "" {
		vote, err := parseVoteFlag(c, "vote")
		if err != nil {
			return err
		}
		result["vote"] = vote.String()
		result["commitment"] = commitment.Hash(vote, secret).Hex()
	}

	if m.json {
		return printJSON(m.w, result)
	}
	fmt.Fprintf(m.w, "secret:     %s\n", result["secret"])
	if h, ok := result["commitment"]; ok {
		fmt.Fprintf(m.w, "vote:       %s\n", result["vote"])
		fmt.Fprintf(m.w, "commitment: %s\n", h)
	}
	return nil
}

func runCommitmentList(c *cli.Context) error {
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		entries, err := deps.Voting.Commitments(m.ctx)
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(m.w, "No stored commitments.")
			return nil
		}
		tw := tabwriter.NewWriter(m.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MARKET\tVOTE\tSAVED\tCOMMITMENT")
		for _, e := range entries {
			fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\n",
				e.MarketID, view.VoteLabel(e.Vote), view.Timestamp(e.CreatedAt()), e.Commitment().Hex())
		}
		return tw.Flush()
	})
}

func runCommitmentShow(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		rec, ok := deps.Voting.StoredCommitment(m.ctx, id)
		if !ok {
			return cli.NewExitError("No saved secret for this market.", 1)
		}
		if m.json {
			return printJSON(m.w, commitment.Entry{MarketID: id, Record: rec})
		}
		fmt.Fprintf(m.w, "market:     #%d\n", id)
		fmt.Fprintf(m.w, "vote:       %s\n", view.VoteLabel(rec.Vote))
		fmt.Fprintf(m.w, "secret:     %s\n", rec.Secret)
		fmt.Fprintf(m.w, "commitment: %s\n", rec.Commitment().Hex())
		fmt.Fprintf(m.w, "saved:      %s\n", view.Timestamp(rec.CreatedAt()))
		return nil
	})
}

func runCommitmentClear(c *cli.Context) error {
	id, err := marketArg(c)
	if err != nil {
		return err
	}
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		if err := deps.Voting.ClearCommitment(m.ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(m.e, "cleared market #%d\n", id)
		return nil
	})
}

func runCommitmentPrune(c *cli.Context) error {
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		pruned, err := deps.Voting.Prune(m.ctx)
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, map[string][]uint64{"pruned": pruned})
		}
		fmt.Fprintf(m.w, "pruned %d record(s)\n", len(pruned))
		for _, id := range pruned {
			fmt.Fprintf(m.w, "  #%d\n", id)
		}
		return nil
	})
}

func passphrase(c *cli.Context, m *metadata) (string, error) {
	if p := c.String("passphrase"); p != "" {
		return p, nil
	}
	if m.cfg.Backup.Passphrase != "" {
		return m.cfg.Backup.Passphrase, nil
	}
	return "", errors.New("no passphrase: pass --passphrase or set backup.passphrase")
}

func runBackupExport(c *cli.Context) error {
	pass, err := passphrase(c, meta(c))
	if err != nil {
		return err
	}
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		if deps.Wallet == (common.Address{}) {
			return errNoWallet
		}
		path, n, err := deps.Backup.Export(m.ctx, deps.Wallet, pass)
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, map[string]any{"path": path, "records": n})
		}
		fmt.Fprintf(m.w, "exported %d record(s) to %s\n", n, path)
		return nil
	})
}

func runBackupList(c *cli.Context) error {
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		if deps.Wallet == (common.Address{}) {
			return errNoWallet
		}
		infos, err := deps.Backup.List(m.ctx, deps.Wallet)
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, infos)
		}
		if len(infos) == 0 {
			fmt.Fprintln(m.w, "No backups.")
			return nil
		}
		tw := tabwriter.NewWriter(m.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PATH\tSIZE\tMODIFIED")
		for _, b := range infos {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Path, b.Size, view.Timestamp(b.LastModified))
		}
		return tw.Flush()
	})
}

func runBackupRestore(c *cli.Context) error {
	pass, err := passphrase(c, meta(c))
	if err != nil {
		return err
	}
	path := c.Args().First()
	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		if deps.Wallet == (common.Address{}) {
			return errNoWallet
		}
		res, err := deps.Backup.Restore(m.ctx, deps.Wallet, path, pass, c.Bool("force"))
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, res)
		}
		fmt.Fprintf(m.w, "restored %d record(s)\n", res.Written)
		if len(res.Skipped) > 0 {
			fmt.Fprintf(m.e, "kept %d differing local record(s):", len(res.Skipped))
			for _, id := range res.Skipped {
				fmt.Fprintf(m.e, " #%d", id)
			}
			fmt.Fprintln(m.e, "\nRun again with --force to replace them.")
		}
		return nil
	})
}

func runActivity(c *cli.Context) error {
	limit := c.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("invalid limit: %d", limit)
	}
	offset := c.Int("offset")
	if offset < 0 {
		return fmt.Errorf("invalid offset: %d", offset)
	}

	return withDeps(c, func(m *metadata, deps *app.Dependencies) error {
		wallet, err := viewer(c, deps)
		if err != nil {
			return err
		}
		if wallet == (common.Address{}) {
			return errNoWallet
		}
		items, err := deps.Activity.ListByWallet(m.ctx, wallet, domain.ListOpts{Limit: limit, Offset: offset})
		if err != nil {
			return err
		}
		if m.json {
			return printJSON(m.w, items)
		}
		if len(items) == 0 {
			fmt.Fprintln(m.w, "No activity.")
			return nil
		}
		return view.RenderActivity(m.w, items)
	})
}

func runKeyEncrypt(c *cli.Context) error {
	m := meta(c)
	key := strings.TrimPrefix(strings.TrimSpace(c.String("key")), "0x")
	password := c.String("password")
	out := c.String("out")
	switch {
	case key == "":
		return errors.New("--key is required")
	case password == "":
		return errors.New("--password is required")
	case out == "":
		return errors.New("--out is required")
	}

	data, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("not overwriting existing file: %q", out)
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return err
	}

	w, err := crypto.NewWallet(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.w, "wrote %s for %s\n", out, w.Address().Hex())
	fmt.Fprintln(m.e, "Set wallet.encrypted_key_path and wallet.key_password to use it.")
	return nil
}
