package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/target/console-auth/internal/bootstrap"
	"github.com/target/console-auth/internal/data"
	domainauth "github.com/target/console-auth/internal/domain/auth"
)

const defaultPurgeRetention = 90 * 24 * time.Hour

type auditTailOptions struct {
	Filter data.AuditFilter
	JSON   bool
}

func parseAuditTailFlags(args []string, now time.Time) (auditTailOptions, error) {
	fs := flag.NewFlagSet("audit-tail", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		opts  auditTailOptions
		op    string
		res   string
		since time.Duration
	)
	fs.StringVar(&opts.Filter.SessionID, "session", "", "only events for this session id")
	fs.StringVar(&opts.Filter.Username, "user", "", "only events for this username")
	fs.StringVar(&op, "op", "", "only this operation (e.g. begin_login)")
	fs.StringVar(&res, "result", "", "only this result (success, challenge, failure, preference_pending, expired)")
	fs.DurationVar(&since, "since", 0, "only events newer than this duration")
	fs.IntVar(&opts.Filter.Limit, "limit", 50, "maximum number of events")
	fs.BoolVar(&opts.JSON, "json", false, "print JSON lines instead of a table")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if since < 0 {
		return opts, errors.New("since must not be negative")
	}
	if since > 0 {
		opts.Filter.Since = now.Add(-since)
	}
	opts.Filter.Op = domainauth.Operation(op)
	opts.Filter.Result = domainauth.Result(res)
	return opts, nil
}

func runAuditTail(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditTailFlags(args, time.Now())
	if err != nil {
		return err
	}

	db, err := bootstrap.ConnectDB(cmdCtx.Ctx, cmdCtx.Config.Postgres, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	records, err := data.NewAuditRepo(db).List(cmdCtx.Ctx, opts.Filter)
	if err != nil {
		return fmt.Errorf("list audit events: %w", err)
	}
	if opts.JSON {
		return printAuditJSON(os.Stdout, records)
	}
	return printAuditTable(os.Stdout, records)
}

func printAuditTable(w io.Writer, records []data.AuditRecord) error {
	if len(records) == 0 {
		return writef(w, "no audit events\n")
	}
	tw := newTabWriter(w)
	if err := writef(tw, "TIME\tSESSION\tOP\tRESULT\tPHASE\tUSER\tERROR\tDURATION\n"); err != nil {
		return err
	}
	for _, r := range records {
		errCol := r.ErrorCode
		if r.Reason != "" {
			errCol += "/" + r.Reason
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%dms\n",
			r.OccurredAt.UTC().Format(time.RFC3339),
			shortID(r.SessionID),
			r.Op,
			r.Result,
			r.Phase,
			dash(r.Username),
			dash(errCol),
			r.DurationMS,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printAuditJSON(w io.Writer, records []data.AuditRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

type auditPurgeOptions struct {
	OlderThan time.Duration
	DryRun    bool
}

func parseAuditPurgeFlags(args []string) (auditPurgeOptions, error) {
	fs := flag.NewFlagSet("audit-purge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := auditPurgeOptions{}
	fs.DurationVar(&opts.OlderThan, "older-than", defaultPurgeRetention, "delete events older than this duration")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "print the cutoff without deleting")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.OlderThan <= 0 {
		return opts, errors.New("older-than must be positive")
	}
	return opts, nil
}

func runAuditPurge(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditPurgeFlags(args)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-opts.OlderThan)
	if opts.DryRun {
		return writef(os.Stdout, "would delete audit events before %s\n", cutoff.UTC().Format(time.RFC3339))
	}

	db, err := bootstrap.ConnectDB(cmdCtx.Ctx, cmdCtx.Config.Postgres, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	n, err := data.NewAuditRepo(db).PurgeBefore(cmdCtx.Ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge audit events: %w", err)
	}
	cmdCtx.Logger.Info("purged audit events", "count", n, "cutoff", cutoff)
	return writef(os.Stdout, "deleted %d audit events\n", n)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return dash(id)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
