package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/garyjia/invoice-approval/internal/container"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

type checkFailedCmd struct {
	raw bool
}

func (*checkFailedCmd) Name() string     { return "check-failed" }
func (*checkFailedCmd) Synopsis() string { return "report invoices whose extraction failed or is stuck" }
func (*checkFailedCmd) Usage() string {
	return `invoicectl check-failed [-raw]

  Lists FAILED and PROCESSING invoices as a table.
`
}

func (c *checkFailedCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print the markdown without terminal styling.")
}

func (c *checkFailedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exitStatus(withContainer(ctx, func(ct *container.Container) error {
		invoices, err := ct.Repositories().Invoice.ListByExtractionStatus(ctx, entity.ExtractionFailed, entity.ExtractionProcessing)
		if err != nil {
			return err
		}
		md := failedReport(invoices, time.Now())
		if c.raw {
			fmt.Print(md)
			return nil
		}
		return printMarkdown(md)
	}))
}

// failedReport renders the invoices as a markdown table
func failedReport(invoices []*entity.Invoice, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Extraction problems\n\n")
	if len(invoices) == 0 {
		b.WriteString("No failed or stuck extractions.\n")
		return b.String()
	}

	failed := 0
	for _, inv := range invoices {
		if inv.ExtractionStatus == entity.ExtractionFailed {
			failed++
		}
	}
	fmt.Fprintf(&b, "%d failed, %d processing.\n\n", failed, len(invoices)-failed)

	b.WriteString("| Invoice | File | Category | Extraction | Submitted | Age |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, inv := range invoices {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			inv.ID,
			escapeCell(inv.OriginalFilename),
			inv.Category,
			inv.ExtractionStatus,
			inv.CreatedAt.UTC().Format("2006-01-02 15:04"),
			now.Sub(inv.CreatedAt).Truncate(time.Minute),
		)
	}
	b.WriteString("\nRetry with `invoicectl reprocess <invoice-id>` or `invoicectl retry-failed`.\n")
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func printMarkdown(md string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
