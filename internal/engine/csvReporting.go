package engine

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"simtrader/types"
)

type orderLogRow struct {
	OrderID     string `csv:"order_id"`
	Symbol      string `csv:"symbol"`
	Side        string `csv:"side"`
	Status      string `csv:"status"`
	Quantity    string `csv:"quantity"`
	Price       string `csv:"price"`
	Commission  string `csv:"commission"`
	RealizedPnL string `csv:"realized_pnl"`
	Reason      string `csv:"reason"`
	SubmittedAt string `csv:"submitted_at"` // RFC3339
	FilledAt    string `csv:"filled_at"`    // RFC3339
}

func newOrderLogRow(r types.OrderRecord) *orderLogRow {
	return &orderLogRow{
		OrderID:     strconv.FormatInt(r.OrderID, 10),
		Symbol:      r.Symbol,
		Side:        string(r.Side),
		Status:      string(r.Status),
		Quantity:    r.Quantity.String(),
		Price:       r.Price.String(),
		Commission:  r.Commission.String(),
		RealizedPnL: r.RealizedPnL.String(),
		Reason:      r.Reason,
		SubmittedAt: r.SubmittedAt.Format(time.RFC3339),
		FilledAt:    r.FilledAt.Format(time.RFC3339),
	}
}

// WriteOrderLogFile writes the order log to a CSV file at the given path.
func WriteOrderLogFile(path string, orders []types.OrderRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create order log file: %w", err)
	}
	return writeOrderLogFile(f, orders)
}

// writeOrderLogFile writes the log to wc and closes it.
func writeOrderLogFile(wc io.WriteCloser, orders []types.OrderRecord) error {
	if err := WriteOrderLog(wc, orders); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close order log file: %w", err)
	}
	return nil
}

// WriteOrderLog writes the order log to any io.Writer as CSV.
// You can pass os.Stdout for debugging, or a file.
func WriteOrderLog(w io.Writer, orders []types.OrderRecord) error {
	rows := make([]*orderLogRow, len(orders))
	for i, o := range orders {
		rows[i] = newOrderLogRow(o)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write order log: %w", err)
	}
	return nil
}
