package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"jadbank/internal/config"
	"jadbank/internal/database"
	"jadbank/internal/idempotency"
	"jadbank/internal/ratetable"
	"jadbank/internal/repository"
	"jadbank/internal/services"
	"jadbank/internal/store"
)

// environment gives every command access to the store and an output sink.
type environment struct {
	open func(ctx context.Context) (*repository.Repository, *config.Config, func(), error)
	out  io.Writer
}

func commands(env *environment) []subcommands.Command {
	return []subcommands.Command{
		&reconcileCmd{env: env},
		&flagsCmd{env: env},
		&clearFlagCmd{env: env},
		&intentsCmd{env: env},
		&ratesCmd{env: env},
	}
}

// openRepository connects to the database named by the configuration. The
// in-memory backend lives inside the API process and cannot be reached.
func openRepository(_ context.Context) (*repository.Repository, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.StoreBackend == config.StoreMemory {
		return nil, nil, nil, fmt.Errorf("STORE_BACKEND=memory has no shared state; point ledgerctl at postgres or sqlite")
	}
	m, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return nil, nil, nil, err
	}
	repo := repository.New(store.WithTimeout(store.NewGormStore(m.DB()), cfg.StoreTimeout))
	return repo, cfg, func() { _ = m.Close() }, nil
}

// operator builds an OperatorServicer over the opened store.
func (e *environment) operator(ctx context.Context) (services.OperatorServicer, func(), error) {
	repo, cfg, closeFn, err := e.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	var idem idempotency.Store = idempotency.NewRowStore(repo)
	if cfg.RedisAddr != "" {
		client, err := idempotency.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		idem = idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
		closeStore := closeFn
		closeFn = func() {
			_ = client.Close()
			closeStore()
		}
	}
	reconciler := services.NewReconciler(repo, services.NewLockTable(), idem, nil, cfg.KafkaTopicPrefix)
	return services.NewOperatorService(repo, reconciler), closeFn, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

type reconcileCmd struct {
	env  *environment
	json bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "resolve every unfinished intent once" }
func (*reconcileCmd) Usage() string {
	return `ledgerctl reconcile [-json]

  Runs one reconciliation sweep: intents whose effects all landed are
  committed, partial ones are reversed, and anything that cannot be
  explained is flagged for review. Stop the API first or run it against a
  store the API is not writing to; the sweep does not share locks with it.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print the report as JSON")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	op, closeFn, err := c.env.operator(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	report, err := op.Reconcile(ctx)
	if err != nil {
		return fail(err)
	}
	if c.json {
		return writeJSON(c.env.out, report)
	}
	fmt.Fprintf(c.env.out, "examined %d: committed %d, rolled forward %d, reversed %d, abandoned %d, inconsistent %d, errors %d\n",
		report.Examined, report.Committed, report.RolledForward, report.Reversed, report.Abandoned, report.Inconsistent, report.Errors)
	if report.Inconsistent > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type flagsCmd struct{ env *environment }

func (*flagsCmd) Name() string             { return "flags" }
func (*flagsCmd) Synopsis() string         { return "list accounts locked for manual review" }
func (*flagsCmd) Usage() string            { return "ledgerctl flags\n" }
func (*flagsCmd) SetFlags(_ *flag.FlagSet) {}

func (c *flagsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	op, closeFn, err := c.env.operator(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	flags, err := op.ListOpenFlags(ctx)
	if err != nil {
		return fail(err)
	}
	w := tabwriter.NewWriter(c.env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACCOUNT\tINTENT\tCREATED\tREASON")
	for _, f := range flags {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.AccountNumber, f.IntentID, f.CreatedAt.Format("2006-01-02 15:04"), f.Reason)
	}
	_ = w.Flush()
	return subcommands.ExitSuccess
}

type clearFlagCmd struct {
	env *environment
	id  string
}

func (*clearFlagCmd) Name() string     { return "clear-flag" }
func (*clearFlagCmd) Synopsis() string { return "unlock an account after review" }
func (*clearFlagCmd) Usage() string {
	return `ledgerctl clear-flag -id <flag id>

  Marks the flag reviewed. The account accepts operations again once no
  other open flag names it.
`
}

func (c *clearFlagCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "flag id to clear")
}

func (c *clearFlagCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		return subcommands.ExitUsageError
	}
	op, closeFn, err := c.env.operator(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	cleared, err := op.ClearFlag(ctx, c.id)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.env.out, "cleared %s on account %s\n", cleared.ID, cleared.AccountNumber)
	return subcommands.ExitSuccess
}

type intentsCmd struct {
	env  *environment
	json bool
}

func (*intentsCmd) Name() string     { return "intents" }
func (*intentsCmd) Synopsis() string { return "list intents that are not finished" }
func (*intentsCmd) Usage() string    { return "ledgerctl intents [-json]\n" }

func (c *intentsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print intents with their legs as JSON")
}

func (c *intentsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	op, closeFn, err := c.env.operator(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	intents, err := op.ListOpenIntents(ctx)
	if err != nil {
		return fail(err)
	}
	if c.json {
		return writeJSON(c.env.out, intents)
	}
	w := tabwriter.NewWriter(c.env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tUSER\tLEGS\tUPDATED")
	for _, i := range intents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", i.ID, i.Kind, i.Status, i.UserID, len(i.Legs), i.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
	return subcommands.ExitSuccess
}

type ratesCmd struct{ env *environment }

func (*ratesCmd) Name() string             { return "rates" }
func (*ratesCmd) Synopsis() string         { return "print the rate table and flag asymmetric pairs" }
func (*ratesCmd) Usage() string            { return "ledgerctl rates\n" }
func (*ratesCmd) SetFlags(_ *flag.FlagSet) {}

func (c *ratesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, cfg, closeFn, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	table, err := ratetable.Load(ctx, repo, ratetable.Options{
		Policy:    ratetable.ParsePolicy(cfg.RateSymmetry),
		Tolerance: cfg.RateSymmetryTolerance,
	})
	if err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(c.env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BASE\tQUOTE\tRATE")
	for _, e := range table.Edges() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Base, e.Quote, e.Rate)
	}
	_ = w.Flush()

	for _, a := range table.Asymmetries() {
		if !a.HasReturn {
			fmt.Fprintf(c.env.out, "asymmetric: %s/%s has no reverse rate\n", a.Base, a.Quote)
			continue
		}
		fmt.Fprintf(c.env.out, "asymmetric: %s/%s forward %s reverse %s\n", a.Base, a.Quote, a.Forward, a.Reverse)
	}
	return subcommands.ExitSuccess
}

func writeJSON(w io.Writer, v any) subcommands.ExitStatus {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
