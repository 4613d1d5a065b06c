package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/config"
	"github.com/bitfsorg/poolvault-go/revshare"
	"github.com/bitfsorg/poolvault-go/store"
	"github.com/bitfsorg/poolvault-go/units"
	"github.com/bitfsorg/poolvault-go/vault"
)

var (
	pendingFlag = &cli.BoolFlag{
		Name:  "pending",
		Usage: "list only requests still waiting for randomness",
	}
	forceFlag = &cli.BoolFlag{
		Name:  "force",
		Usage: "overwrite an existing configuration file",
	}
)

var commandStatus = &cli.Command{
	Name:   "status",
	Usage:  "print the vault's fee rate, supply and per-asset balances",
	Action: runStatus,
}

var commandAssets = &cli.Command{
	Name:   "assets",
	Usage:  "list supported assets",
	Action: runAssets,
}

var commandParticipants = &cli.Command{
	Name:   "participants",
	Usage:  "list share holders eligible for distributions",
	Action: runParticipants,
}

var commandRequests = &cli.Command{
	Name:   "requests",
	Usage:  "list distribution requests and their payouts",
	Flags:  []cli.Flag{pendingFlag},
	Action: runRequests,
}

var commandInitConfig = &cli.Command{
	Name:  "init-config",
	Usage: "write a default configuration file",
	Description: `
Writes the default configuration to --config, or to <datadir>/config.
An existing file is kept unless --force is given.`,
	Flags:  []cli.Flag{forceFlag},
	Action: runInitConfig,
}

// ledgerView is a read-only copy of the persisted vault ledger.
type ledgerView struct {
	snap     *store.Snapshot
	claims   *claim.Ledger
	requests []*revshare.Request
}

// openLedger reads the ledger under the configured data directory. The
// database is opened read-only and closed before returning.
func openLedger(ctx *cli.Context) (*ledgerView, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	path := vault.LedgerPath(cfg.DataDir)
	st, err := store.OpenBoltStoreReadOnly(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no vault ledger at %s", path)
		}
		return nil, err
	}
	defer st.Close()

	snap, err := st.LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	claims, err := claim.FromSnapshot(snap.Claims)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	reqs, err := st.ListRequests()
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	log.Debug("Opened vault ledger", "path", path, "assets", len(snap.State.Assets), "requests", len(reqs))
	return &ledgerView{snap: snap, claims: claims, requests: reqs}, nil
}

func runStatus(ctx *cli.Context) error {
	lv, err := openLedger(ctx)
	if err != nil {
		return err
	}
	state := lv.snap.State
	pending := 0
	for _, r := range lv.requests {
		if !r.Fulfilled {
			pending++
		}
	}

	w := ctx.App.Writer
	fmt.Fprintf(w, "Fee rate:      %s\n", units.FormatValue(state.FeeRate))
	fmt.Fprintf(w, "Paused:        %t\n", state.Paused)
	fmt.Fprintf(w, "Total supply:  %s\n", units.FormatValue(lv.claims.TotalSupply()))
	fmt.Fprintf(w, "Participants:  %d\n", len(lv.snap.Participants))
	fmt.Fprintf(w, "Distributions: %d pending, %d fulfilled\n", pending, len(lv.requests)-pending)
	fmt.Fprintln(w)
	return printAssets(w, lv)
}

func runAssets(ctx *cli.Context) error {
	lv, err := openLedger(ctx)
	if err != nil {
		return err
	}
	return printAssets(ctx.App.Writer, lv)
}

func printAssets(out io.Writer, lv *ledgerView) error {
	state := lv.snap.State
	if len(state.Assets) == 0 {
		fmt.Fprintln(out, "No supported assets.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tRECEIPT\tDECIMALS\tLAST BALANCE\tACCRUED FEE\tDEPOSITED VALUE")
	for _, a := range state.Assets {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", a.ID, a.Receipt, a.Decimals,
			units.FormatUnits(state.LastObserved(a.ID), a.Decimals),
			units.FormatUnits(state.Fee(a.ID), a.Decimals),
			units.FormatValue(state.DepositedValue(a.ID)))
	}
	return w.Flush()
}

func runParticipants(ctx *cli.Context) error {
	lv, err := openLedger(ctx)
	if err != nil {
		return err
	}
	out := ctx.App.Writer
	if len(lv.snap.Participants) == 0 {
		fmt.Fprintln(out, "No participants.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HOLDER\tSHARES")
	for _, p := range lv.snap.Participants {
		fmt.Fprintf(w, "%s\t%s\n", p, units.FormatValue(lv.claims.BalanceOf(p)))
	}
	return w.Flush()
}

func runRequests(ctx *cli.Context) error {
	lv, err := openLedger(ctx)
	if err != nil {
		return err
	}
	decimals := make(map[string]uint8, len(lv.snap.State.Assets))
	for _, a := range lv.snap.State.Assets {
		decimals[a.ID] = a.Decimals
	}

	out := ctx.App.Writer
	onlyPending := ctx.Bool(pendingFlag.Name)
	shown := 0
	for _, r := range lv.requests {
		if onlyPending && r.Fulfilled {
			continue
		}
		shown++
		fmt.Fprintf(out, "%s  %-9s  value=%s winners=%d asset=%s mode=%s requested=%s\n",
			r.ID, r.Status(), units.FormatValue(r.TotalValue), r.WinnerCount, r.TargetAsset,
			r.PaymentMode, r.RequestedAt.Format(time.RFC3339))
		if !r.Fulfilled {
			continue
		}
		dec, known := decimals[r.TargetAsset]
		for _, p := range r.Payouts {
			amount := p.Amount.Dec()
			if known {
				amount = units.FormatUnits(p.Amount, dec)
			}
			note := ""
			if !p.Paid {
				note = "  (unpaid)"
			}
			fmt.Fprintf(out, "    -> %s  %s %s%s\n", p.Address, amount, r.TargetAsset, note)
		}
		if r.Remainder != nil && !r.Remainder.IsZero() {
			fmt.Fprintf(out, "    remainder %s (%s)\n", units.FormatValue(r.Remainder), r.Policy)
		}
	}
	if shown == 0 {
		fmt.Fprintln(out, "No distribution requests.")
	}
	return nil
}

func runInitConfig(ctx *cli.Context) error {
	dataDir := ctx.String(dataDirFlag.Name)
	path := ctx.String(configFlag.Name)
	if path == "" {
		path = config.ConfigPath(dataDir)
	}
	if _, err := os.Stat(path); err == nil && !ctx.Bool(forceFlag.Name) {
		return fmt.Errorf("configuration %s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	cfg.DataDir = dataDir
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "Wrote %s\n", path)
	return nil
}
