package main

import (
	"github.com/urfave/cli"

	"github.com/alanyoungcy/ppmclient/internal/service"
)

func commands() []cli.Command {
	walletFlag := cli.StringFlag{
		Name:  "wallet, w",
		Value: "",
		Usage: " view as wallet `ADDRESS` [default configured wallet]",
	}

	return []cli.Command{
		{
			Name:   "markets",
			Usage:  "list every market",
			Flags:  []cli.Flag{walletFlag},
			Action: runMarkets,
		},
		{
			Name:      "market",
			Usage:     "show one market",
			ArgsUsage: "MARKET_ID",
			Flags:     []cli.Flag{walletFlag},
			Action:    runMarket,
		},
		{
			Name:      "status",
			Usage:     "show whether a wallet has committed and revealed",
			ArgsUsage: "MARKET_ID",
			Flags:     []cli.Flag{walletFlag},
			Action:    runStatus,
		},
		{
			Name:      "panel",
			Usage:     "show the creator panel for a market",
			ArgsUsage: "MARKET_ID",
			Flags:     []cli.Flag{walletFlag},
			Action:    runPanel,
		},
		{
			Name:      "create",
			Usage:     "create a market",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "description, d",
					Usage: "*market question `TEXT`",
				},
				cli.DurationFlag{
					Name:  "commit",
					Value: service.DefaultCommitDuration,
					Usage: " commit phase `DURATION`",
				},
				cli.DurationFlag{
					Name:  "reveal",
					Value: service.DefaultRevealDuration,
					Usage: " reveal phase `DURATION`",
				},
			},
			Action: runCreate,
		},
		{
			Name:      "commit",
			Usage:     "commit a hidden vote; the secret is stored locally",
			ArgsUsage: "MARKET_ID\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "vote, v",
					Usage: "*vote `yes|no`",
				},
			},
			Action: runCommit,
		},
		{
			Name:      "reveal",
			Usage:     "reveal a committed vote",
			ArgsUsage: "MARKET_ID",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "vote, v",
					Usage: " vote `yes|no`, with --secret when nothing is stored",
				},
				cli.StringFlag{
					Name:  "secret, s",
					Usage: " 32-byte hex `SECRET` written down at commit",
				},
			},
			Action: runReveal,
		},
		{
			Name:      "transition",
			Usage:     "move a market to its next phase (creator only)",
			ArgsUsage: "MARKET_ID\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "to, t",
					Usage: "*target `PHASE` [reveal|resolved]",
				},
			},
			Action: runTransition,
		},
		{
			Name:      "resolve",
			Usage:     "resolve a market (creator only)",
			ArgsUsage: "MARKET_ID",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "outcome, o",
					Usage: " declared `yes|no`; omitted lets the contract tally",
				},
			},
			Action: runResolve,
		},
		{
			Name:  "secret",
			Usage: "generate a random secret",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "vote, v",
					Usage: " also print the commitment for `yes|no`",
				},
			},
			Action: runSecret,
		},
		{
			Name:  "commitment",
			Usage: "manage locally stored commitments",
			Subcommands: []cli.Command{
				{
					Name:   "list",
					Usage:  "list stored commitments",
					Action: runCommitmentList,
				},
				{
					Name:      "show",
					Usage:     "show the stored vote and secret for a market",
					ArgsUsage: "MARKET_ID",
					Action:    runCommitmentShow,
				},
				{
					Name:      "clear",
					Usage:     "delete the stored record for a market",
					ArgsUsage: "MARKET_ID",
					Action:    runCommitmentClear,
				},
				{
					Name:   "prune",
					Usage:  "delete records that are revealed or resolved",
					Action: runCommitmentPrune,
				},
			},
		},
		{
			Name:  "backup",
			Usage: "encrypted backups of stored commitments",
			Subcommands: []cli.Command{
				{
					Name:  "export",
					Usage: "seal and upload every stored commitment",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "passphrase, p",
							Usage: " backup `PASSPHRASE` [default backup.passphrase]",
						},
					},
					Action: runBackupExport,
				},
				{
					Name:   "list",
					Usage:  "list backups for the configured wallet",
					Action: runBackupList,
				},
				{
					Name:      "restore",
					Usage:     "restore records from a backup",
					ArgsUsage: "PATH",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "passphrase, p",
							Usage: " backup `PASSPHRASE` [default backup.passphrase]",
						},
						cli.BoolFlag{
							Name:  "force, f",
							Usage: " replace local records that differ from the backup",
						},
					},
					Action: runBackupRestore,
				},
			},
		},
		{
			Name:  "activity",
			Usage: "show recorded actions for a wallet",
			Flags: []cli.Flag{
				walletFlag,
				cli.IntFlag{
					Name:  "limit, l",
					Value: 20,
					Usage: " maximum records `COUNT`",
				},
				cli.IntFlag{
					Name:  "offset",
					Value: 0,
					Usage: " records to skip `COUNT`",
				},
			},
			Action: runActivity,
		},
		{
			Name:  "key",
			Usage: "wallet key files",
			Subcommands: []cli.Command{
				{
					Name:      "encrypt",
					Usage:     "write an encrypted key file for wallet.encrypted_key_path",
					ArgsUsage: "\n   (* = required)",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:   "key, k",
							EnvVar: "PPM_WALLET_PRIVATE_KEY",
							Usage:  "*hex private `KEY`",
						},
						cli.StringFlag{
							Name:   "password, p",
							EnvVar: "PPM_WALLET_KEY_PASSWORD",
							Usage:  "*key file `PASSWORD`",
						},
						cli.StringFlag{
							Name:  "out, o",
							Usage: "*output `FILE`",
						},
					},
					Action: runKeyEncrypt,
				},
			},
		},
		{
			Name:   "serve",
			Usage:  "run the HTTP API, websocket hub and phase watcher",
			Action: runMode,
		},
		{
			Name:   "watch",
			Usage:  "run the phase watcher and notifier",
			Action: runMode,
		},
	}
}
