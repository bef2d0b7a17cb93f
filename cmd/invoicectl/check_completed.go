package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/garyjia/invoice-approval/internal/container"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

type checkCompletedCmd struct {
	limit int
	raw   bool
}

func (*checkCompletedCmd) Name() string     { return "check-completed" }
func (*checkCompletedCmd) Synopsis() string { return "list the most recent successful extractions" }
func (*checkCompletedCmd) Usage() string {
	return `invoicectl check-completed [-limit <n>] [-raw]

  Lists invoices whose extraction completed, newest first, with the workflow
  status and duplicate flag they ended up with.
`
}

func (c *checkCompletedCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 10, "Show at most this many invoices (0 means all).")
	f.BoolVar(&c.raw, "raw", false, "Print the markdown without terminal styling.")
}

func (c *checkCompletedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.limit < 0 {
		fmt.Fprintln(f.Output(), "-limit must not be negative")
		return subcommands.ExitUsageError
	}
	return exitStatus(withContainer(ctx, func(ct *container.Container) error {
		invoices, err := ct.Repositories().Invoice.ListByExtractionStatus(ctx, entity.ExtractionCompleted)
		if err != nil {
			return err
		}
		md := completedReport(invoices, c.limit)
		if c.raw {
			fmt.Print(md)
			return nil
		}
		return printMarkdown(md)
	}))
}

// completedReport renders up to limit invoices, which arrive newest first
func completedReport(invoices []*entity.Invoice, limit int) string {
	total := len(invoices)
	if limit > 0 && len(invoices) > limit {
		invoices = invoices[:limit]
	}

	var b strings.Builder
	b.WriteString("# Completed extractions\n\n")
	if total == 0 {
		b.WriteString("No completed extractions yet.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Showing %d of %d.\n\n", len(invoices), total)

	b.WriteString("| Invoice | File | Status | Two-level | Duplicate of | Submitted |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, inv := range invoices {
		dup := "-"
		if inv.IsDuplicate && inv.DuplicateOf != nil {
			dup = *inv.DuplicateOf
		}
		twoLevel := "no"
		if inv.RequiresTwoLevel {
			twoLevel = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			inv.ID,
			escapeCell(inv.OriginalFilename),
			inv.Status,
			twoLevel,
			dup,
			inv.CreatedAt.UTC().Format("2006-01-02 15:04"),
		)
	}
	return b.String()
}
