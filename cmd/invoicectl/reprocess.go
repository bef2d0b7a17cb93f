package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/container"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

type reprocessCmd struct{}

func (*reprocessCmd) Name() string     { return "reprocess" }
func (*reprocessCmd) Synopsis() string { return "re-run AI extraction for one invoice" }
func (*reprocessCmd) Usage() string {
	return `invoicectl reprocess <invoice-id>

  Runs extraction again for an invoice whose extraction failed or never ran.
  Invoices whose extraction already completed are left untouched.
`
}

func (*reprocessCmd) SetFlags(f *flag.FlagSet) {}

func (*reprocessCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "reprocess takes exactly one invoice id")
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)

	return exitStatus(withContainer(ctx, func(c *container.Container) error {
		out, err := c.WorkflowEngine().ReprocessExtraction(ctx, id)
		if err != nil {
			return err
		}
		printOutcome(os.Stdout, out)
		if out.Err != nil {
			return fmt.Errorf("extraction failed for %s", id)
		}
		return nil
	}))
}

type retryFailedCmd struct {
	limit int
}

func (*retryFailedCmd) Name() string     { return "retry-failed" }
func (*retryFailedCmd) Synopsis() string { return "re-run extraction for every FAILED invoice" }
func (*retryFailedCmd) Usage() string {
	return `invoicectl retry-failed [-limit <n>]

  Reprocesses invoices whose extraction failed, newest first, and reports
  the outcome of each one.
`
}

func (r *retryFailedCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&r.limit, "limit", 0, "Retry at most this many invoices (0 means all).")
}

func (r *retryFailedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exitStatus(withContainer(ctx, func(c *container.Container) error {
		failed, err := c.Repositories().Invoice.ListByExtractionStatus(ctx, entity.ExtractionFailed)
		if err != nil {
			return err
		}
		if r.limit > 0 && len(failed) > r.limit {
			failed = failed[:r.limit]
		}
		if len(failed) == 0 {
			fmt.Println("No failed extractions.")
			return nil
		}

		stillFailing := 0
		for _, inv := range failed {
			out, err := c.WorkflowEngine().ReprocessExtraction(ctx, inv.ID)
			if err != nil {
				fmt.Printf("%s  skipped: %v\n", inv.ID, err)
				continue
			}
			printOutcome(os.Stdout, out)
			if out.Err != nil {
				stillFailing++
			}
		}

		fmt.Printf("\n%d retried, %d still failing\n", len(failed), stillFailing)
		if stillFailing > 0 {
			return fmt.Errorf("%d invoices still fail extraction", stillFailing)
		}
		return nil
	}))
}

func printOutcome(w io.Writer, out *workflow.ExtractionOutcome) {
	switch {
	case out.Err != nil:
		fmt.Fprintf(w, "%s  %s: %v\n", out.InvoiceID, entity.ExtractionFailed, out.Err)
	case out.Skipped:
		fmt.Fprintf(w, "%s  already %s, nothing to do\n", out.InvoiceID, out.Status)
	case out.DuplicateOf != "":
		fmt.Fprintf(w, "%s  %s (duplicate of %s)\n", out.InvoiceID, out.Status, out.DuplicateOf)
	default:
		fmt.Fprintf(w, "%s  %s\n", out.InvoiceID, out.Status)
	}
}
