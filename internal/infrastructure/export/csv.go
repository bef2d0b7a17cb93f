package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// CSVWriter renders the invoice list as RFC 4180 CSV
type CSVWriter struct{}

func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

func (CSVWriter) ContentType() string   { return "text/csv" }
func (CSVWriter) FileExtension() string { return "csv" }

func (CSVWriter) Write(w io.Writer, rows []*entity.InvoiceSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(record(row)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var _ port.Exporter = (*CSVWriter)(nil)
