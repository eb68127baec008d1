// addrindex-cli is a command-line client for querying an addrindexd service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/Klingon-tech/addrindex/config"
	"github.com/Klingon-tech/addrindex/internal/rpcclient"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal("%v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "addrindex-cli",
		Usage:   "Query an addrindexd service",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc",
				Value:   "http://127.0.0.1:8545",
				Usage:   "addrindexd JSON-RPC endpoint",
				EnvVars: []string{"ADDRINDEX_RPC"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "request timeout",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print raw JSON results",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "history",
				Usage:     "Show the transaction history of one or more addresses",
				ArgsUsage: "<address> [address...]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "from", Usage: "first item of the page"},
					&cli.IntFlag{Name: "to", Usage: "end of the page (exclusive)"},
				},
				Action: cmdHistory,
			},
			{
				Name:      "balance",
				Usage:     "Show the confirmed and pending balance of an address",
				ArgsUsage: "<address>",
				Action:    cmdBalance,
			},
			{
				Name:      "unspent",
				Usage:     "List the spendable outputs of one or more addresses",
				ArgsUsage: "<address> [address...]",
				Action:    cmdUnspent,
			},
			{
				Name:  "fee",
				Usage: "Estimate the fee rate for confirmation within N blocks",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "blocks", Usage: "confirmation target (default: server default)"},
				},
				Action: cmdFee,
			},
			{
				Name:      "broadcast",
				Usage:     "Submit a raw transaction (hex argument or stdin)",
				ArgsUsage: "[rawtx]",
				Action:    cmdBroadcast,
			},
			{
				Name:   "mempool",
				Usage:  "Show the service's mempool mirror",
				Action: cmdMempool,
			},
		},
	}
}

func client(c *cli.Context) *rpcclient.Client {
	return rpcclient.NewWithTimeout(c.String("rpc"), c.Duration("timeout"))
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.Duration("timeout"))
}

// ── history ─────────────────────────────────────────────────────────────

func cmdHistory(c *cli.Context) error {
	addrs := c.Args().Slice()
	if len(addrs) == 0 {
		return errors.New("usage: addrindex-cli history <address> [address...]")
	}
	var from, to *int
	if c.IsSet("from") {
		v := c.Int("from")
		from = &v
	}
	if c.IsSet("to") {
		v := c.Int("to")
		to = &v
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	res, err := client(c).History(ctx, addrs, from, to)
	if err != nil {
		return fmt.Errorf("address_getHistory: %w", err)
	}

	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, res)
	}
	for _, h := range res {
		fmt.Fprintf(w, "Address: %s\n", h.Address)
		fmt.Fprintf(w, "Items:   %d-%d of %d\n", h.From, h.To, h.TotalItems)
		for _, rec := range h.Transactions {
			fmt.Fprintf(w, "  %s  height=%-8d conf=%-6d in=%s out=%s fee=%s\n",
				rec.TxID, rec.BlockHeight, rec.Confirmations, rec.ValueIn, rec.ValueOut, rec.Fees)
		}
	}
	return nil
}

// ── balance ─────────────────────────────────────────────────────────────

func cmdBalance(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: addrindex-cli balance <address>")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	res, err := client(c).Balance(ctx, c.Args().First())
	if err != nil {
		return fmt.Errorf("address_getBalance: %w", err)
	}

	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, res)
	}
	fmt.Fprintf(w, "Address:     %s\n", res.Address)
	fmt.Fprintf(w, "Confirmed:   %s (%d sat)\n", res.Balance, res.BalanceSat)
	if res.UnconfirmedBalanceSat != 0 {
		fmt.Fprintf(w, "Unconfirmed: %s (%d sat)\n", res.UnconfirmedBalance, res.UnconfirmedBalanceSat)
	}
	return nil
}

// ── unspent ─────────────────────────────────────────────────────────────

func cmdUnspent(c *cli.Context) error {
	addrs := c.Args().Slice()
	if len(addrs) == 0 {
		return errors.New("usage: addrindex-cli unspent <address> [address...]")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	res, err := client(c).Unspent(ctx, addrs)
	if err != nil {
		return fmt.Errorf("address_listUnspent: %w", err)
	}

	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, res)
	}
	if len(res) == 0 {
		fmt.Fprintln(w, "No unspent outputs")
		return nil
	}
	for _, u := range res {
		fmt.Fprintf(w, "%s:%d  %s  height=%d  %s\n", u.TxID, u.Vout, u.Amount, u.Height, u.Address)
	}
	return nil
}

// ── fee ─────────────────────────────────────────────────────────────────

func cmdFee(c *cli.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	res, err := client(c).EstimateFee(ctx, c.Int("blocks"))
	if err != nil {
		return fmt.Errorf("fee_estimate: %w", err)
	}

	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, res)
	}
	targets := make([]string, 0, len(res))
	for k := range res {
		targets = append(targets, k)
	}
	sort.Strings(targets)
	for _, k := range targets {
		fmt.Fprintf(w, "%s blocks: %s per kB\n", k, res[k])
	}
	return nil
}

// ── broadcast ───────────────────────────────────────────────────────────

func cmdBroadcast(c *cli.Context) error {
	raw := c.Args().First()
	if raw == "" || raw == "-" {
		var err error
		if raw, err = readRawTx(c.App.Reader); err != nil {
			return err
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	txid, err := client(c).Broadcast(ctx, raw)
	if err != nil {
		return fmt.Errorf("tx_broadcast: %w", err)
	}

	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, map[string]string{"txid": txid})
	}
	fmt.Fprintln(w, txid)
	return nil
}

// readRawTx reads a hex transaction piped on r. An interactive terminal
// is refused rather than waited on.
func readRawTx(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errors.New("usage: addrindex-cli broadcast <rawtx> (or pipe it on stdin)")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", errors.New("no transaction given")
	}
	return raw, nil
}

// ── mempool ─────────────────────────────────────────────────────────────

func cmdMempool(c *cli.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	info, err := client(c).MempoolInfo(ctx)
	if err != nil {
		return fmt.Errorf("mempool_getInfo: %w", err)
	}

	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, info)
	}
	fmt.Fprintf(w, "Count:      %d\n", info.Count)
	fmt.Fprintf(w, "Total fees: %s\n", info.TotalFees)
	return nil
}

// ── Output helpers ──────────────────────────────────────────────────────

// printJSON writes v indented when w is a terminal and compact otherwise.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
