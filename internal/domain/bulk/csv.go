package bulk

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"sellerdesk/internal/domain/listing"
)

var csvHeader = []string{
	"id", "marketplace", "sku", "title", "status",
	"price", "currency", "stock", "sync_status", "updated_at",
}

// CSVWriter writes listings as CSV rows.
type CSVWriter struct {
	w    *csv.Writer
	rows int64
}

// NewCSVWriter writes the header and returns the writer.
func NewCSVWriter(out io.Writer) (*CSVWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	return &CSVWriter{w: w}, nil
}

func (c *CSVWriter) Write(l *listing.Listing) error {
	c.rows++
	return c.w.Write([]string{
		l.ID.String(),
		l.Marketplace,
		l.SKU,
		l.Title,
		string(l.Status),
		l.Price.StringFixed(2),
		l.Currency,
		strconv.FormatInt(l.Stock, 10),
		string(l.SyncStatus),
		l.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// Flush writes buffered rows and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// Rows returns the number of data rows written.
func (c *CSVWriter) Rows() int64 {
	return c.rows
}
