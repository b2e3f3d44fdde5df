package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"clevertap-sync/internal/clevertap"
	"clevertap-sync/internal/config"
	"clevertap-sync/internal/connections"
	"clevertap-sync/internal/events"
	"clevertap-sync/internal/mapping"
	"clevertap-sync/internal/payload"
	"clevertap-sync/internal/records"
	"clevertap-sync/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	ConfigsPath string
	RecordsPath string
	AccountID   string
	Passcode    string
	Region      string
	Workers     int
	Timeout     time.Duration
	DryRun      bool

	// DSN switches configs, connections and events to Postgres.
	DSN        string
	Connection string
}

type dryRunEntry struct {
	RecordID string `json:"record_id"`
	Type     string `json:"record_type"`
	Skipped  string `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

type syncReport struct {
	syncer.BatchResult
	Events []events.SyncEvent `json:"events,omitempty"`
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize a JSON file of records to CleverTap",
		Long: `Synchronize a JSON array of records to CleverTap.

Configurations come from a YAML file and the connection from flags; nothing
is persisted. With --dsn, configurations, connections and events live in
Postgres instead, and --configs is optional. Each record is
{"id", "type", "fields"}. Use --records - to read from stdin and --dry-run
to print payloads without dispatching.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Passcode == "" {
				opts.Passcode = os.Getenv("CLEVERTAP_PASSCODE")
			}
			return runSync(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigsPath, "configs", "c", "", "YAML file of sync configurations")
	cmd.Flags().StringVarP(&opts.RecordsPath, "records", "r", "", "JSON file of records, - for stdin")
	cmd.Flags().StringVar(&opts.AccountID, "account", "", "CleverTap account id")
	cmd.Flags().StringVar(&opts.Passcode, "passcode", "", "CleverTap passcode (default $CLEVERTAP_PASSCODE)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "CleverTap region code")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", config.DefaultWorkers, "concurrent dispatches")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", config.DefaultCleverTapTimeout, "per-request timeout")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "build payloads without dispatching")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "Postgres DSN; use the database instead of in-memory stores")
	cmd.Flags().StringVar(&opts.Connection, "connection", "", "programmatic name of the connection to use")
	_ = cmd.MarkFlagRequired("records")

	return cmd
}

func readRecords(path string, stdin io.Reader) ([]records.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	envs, err := records.Decode(data)
	if err != nil {
		return nil, err
	}
	out := make([]records.Record, 0, len(envs))
	for _, env := range envs {
		rec, err := env.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func runSync(ctx context.Context, rootOpts *RootOptions, opts *SyncOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	log := f.logger()

	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, "--workers must be positive")
	}
	if opts.ConfigsPath == "" && opts.DSN == "" {
		return NewExitError(ExitCommandError, "--configs is required without --dsn")
	}
	recs, err := readRecords(opts.RecordsPath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "load records", err)
	}
	regions, err := loadRegions(rootOpts)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, opts.DSN, regions, opts.Workers)
	if err != nil {
		return err
	}
	defer st.close()

	if opts.ConfigsPath != "" {
		seed, err := mapping.LoadSeedFile(opts.ConfigsPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "load configs", err)
		}
		if st.db != nil {
			// Seeds are not written to a shared database.
			st.configs = mapping.NewMemoryRepo()
		}
		if _, err := seed.Apply(ctx, mapping.NewService(st.configs)); err != nil {
			return WrapExitError(ExitCommandError, "invalid configs", err)
		}
	}
	resolver := mapping.NewResolver(st.configs, log)

	if opts.DryRun {
		return dryRun(ctx, f, resolver, recs)
	}

	if opts.AccountID != "" || opts.Passcode != "" || opts.Region != "" {
		if st.db != nil {
			st.conns = connections.NewService(connections.NewMemoryRepo(), regions)
		}
		conn, err := st.conns.Create(ctx, connections.CreateRequest{
			Label:     "cli",
			AccountID: opts.AccountID,
			Passcode:  opts.Passcode,
			Region:    opts.Region,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "connection", err)
		}
		opts.Connection = conn.Name
	}

	engine := syncer.New(syncer.Deps{
		Resolver:    resolver,
		Connections: st.conns,
		Dispatcher:  clevertap.NewClient(opts.Timeout, clevertap.WithLogger(log)),
		Events:      events.NewLogger(st.events, st.schema, log, nil),
	},
		syncer.WithConnectionName(opts.Connection),
		syncer.WithWorkers(opts.Workers),
		syncer.WithLogger(log),
	)

	res, runErr := engine.SynchronizeBatch(ctx, recs)

	report := syncReport{BatchResult: res}
	if f.verbose {
		report.Events = st.recent(ctx, len(recs))
	}
	if f.json() {
		if err := f.writeJSON(report); err != nil {
			return err
		}
	} else {
		for _, r := range res.Results {
			f.printf("%-8s %-12s %-20s %s\n", r.Outcome, r.RecordType, r.RecordID, r.Reason)
		}
		f.printf("succeeded=%d failed=%d skipped=%d halted=%d\n", res.Succeeded, res.Failed, res.Skipped, res.Halted)
		for _, e := range report.Events {
			f.printf("\n[%s] %s %s\n%s\n", e.Status, e.RecordType, e.RecordID, e.ResponseTrace)
		}
	}

	switch {
	case runErr != nil && clevertap.IsConfigError(runErr):
		return WrapExitError(ExitCommandError, "sync halted", runErr)
	case runErr != nil:
		return WrapExitError(ExitFailure, "sync interrupted", runErr)
	case res.Failed > 0:
		return NewExitError(ExitFailure, "one or more records failed")
	}
	return nil
}

func dryRun(ctx context.Context, f *outputFormatter, resolver *mapping.Resolver, recs []records.Record) error {
	builder := payload.NewBuilder()
	out := make([]dryRunEntry, 0, len(recs))
	failed := 0
	for _, rec := range recs {
		e := dryRunEntry{RecordID: rec.ID(), Type: rec.Type()}
		rc, ok, err := resolver.Resolve(ctx, rec.Type())
		switch {
		case errors.Is(err, mapping.ErrInvalidEntityType):
			e.Skipped = "record has no entity type"
		case err != nil:
			return WrapExitError(ExitCommandError, "resolve config", err)
		case !ok:
			e.Skipped = "no active configuration"
		case !rc.Usable():
			e.Skipped = "configuration has no single identifier mapping"
		default:
			p, err := builder.Build(rec, rc)
			if err != nil {
				failed++
				e.Error = err.Error()
				var be *payload.BuildError
				if errors.As(err, &be) {
					e.Payload = be.Partial
				}
			} else {
				e.Payload = p.Trace()
			}
		}
		out = append(out, e)
	}

	if f.json() {
		if err := f.writeJSON(out); err != nil {
			return err
		}
	} else {
		for _, e := range out {
			switch {
			case e.Skipped != "":
				f.printf("skipped  %s %s: %s\n", e.Type, e.RecordID, e.Skipped)
			case e.Error != "":
				f.printf("error    %s %s: %s\n", e.Type, e.RecordID, e.Error)
			default:
				f.printf("payload  %s %s\n%s\n", e.Type, e.RecordID, e.Payload)
			}
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, "one or more payloads could not be built")
	}
	return nil
}
