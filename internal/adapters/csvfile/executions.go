// Package csvfile reads broker execution reports and bar data from CSV files
// and writes quarantined executions back out for audit.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
)

// timestampLayout matches broker report times after truncating any timezone
// suffix: "YYYY-MM-DD HH:MM:SS".
const timestampLayout = "2006-01-02 15:04:05"

// ExecutionReader reads a broker flex-report CSV and implements
// ports.ExecutionSource. Expected columns (header names, any order):
// time, symbol, side, filled_quantity, price, commission, net_cash,
// identifier, order_id, account_id. Quantities in the file are unsigned;
// the sign is derived from the side.
type ExecutionReader struct {
	path   string
	logger ports.Logger
}

// NewExecutionReader creates a reader for a broker report file.
func NewExecutionReader(path string, logger ports.Logger) *ExecutionReader {
	return &ExecutionReader{path: path, logger: logger}
}

// ReadExecutions parses the report and returns executions sorted by
// timestamp. Rows with a non-positive filled quantity are dropped with a
// warning rather than failing the batch.
func (r *ExecutionReader) ReadExecutions(ctx context.Context) ([]*domain.Execution, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open execution report '%s': %w", r.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse execution report '%s': %w", r.path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%w: execution report '%s' is empty", ports.ErrInvalidRequest, r.path)
	}

	cols, err := indexColumns(records[0], "time", "symbol", "side", "filled_quantity", "price")
	if err != nil {
		return nil, fmt.Errorf("execution report '%s': %w", r.path, err)
	}

	execs := make([]*domain.Execution, 0, len(records)-1)
	for i, record := range records[1:] {
		exec, err := parseExecution(record, cols)
		if err != nil {
			return nil, fmt.Errorf("execution report '%s' row %d: %w", r.path, i+2, err)
		}
		if exec == nil {
			r.logger.Warn(ctx, "Skipping execution with non-positive quantity", map[string]interface{}{
				"file": r.path, "row": i + 2,
			})
			continue
		}
		execs = append(execs, exec)
	}

	sort.SliceStable(execs, func(i, j int) bool { return execs[i].Timestamp.Before(execs[j].Timestamp) })
	r.logger.Info(ctx, "Execution report read", map[string]interface{}{"file": r.path, "count": len(execs)})
	return execs, nil
}

// columnIndex maps lowercased header names to their position.
type columnIndex map[string]int

func indexColumns(header []string, required ...string) (columnIndex, error) {
	cols := make(columnIndex, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns: %s", ports.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return cols, nil
}

func (c columnIndex) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columnIndex) getFloat(record []string, name string) (float64, error) {
	raw := c.get(record, name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

// parseExecution converts one CSV record. Returns (nil, nil) for rows whose
// filled quantity is not positive.
func parseExecution(record []string, cols columnIndex) (*domain.Execution, error) {
	rawTime := cols.get(record, "time")
	if len(rawTime) > len(timestampLayout) {
		rawTime = rawTime[:len(timestampLayout)] // Drop timezone suffix
	}
	ts, err := time.Parse(timestampLayout, rawTime)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: %w", cols.get(record, "time"), err)
	}

	qty, err := cols.getFloat(record, "filled_quantity")
	if err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, nil
	}

	price, err := cols.getFloat(record, "price")
	if err != nil {
		return nil, err
	}
	commission, err := cols.getFloat(record, "commission")
	if err != nil {
		return nil, err
	}
	netCash, err := cols.getFloat(record, "net_cash")
	if err != nil {
		return nil, err
	}

	side := domain.OrderSide(strings.ToLower(cols.get(record, "side")))
	quantity := int64(qty)
	if isSellSide(side) {
		quantity = -quantity
	}

	return &domain.Execution{
		AccountID:  cols.get(record, "account_id"),
		ExternalID: cols.get(record, "identifier"),
		OrderID:    cols.get(record, "order_id"),
		Symbol:     cols.get(record, "symbol"),
		Timestamp:  ts,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		NetCash:    netCash,
		Side:       side,
	}, nil
}

func isSellSide(side domain.OrderSide) bool {
	switch side {
	case domain.Sell, domain.SellShort, domain.SellToClose:
		return true
	}
	return false
}

// WriteRejectedExecutions writes quarantined executions to a CSV file so the
// skipped records can be audited by hand.
func WriteRejectedExecutions(rejected []domain.RejectedExecution, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"time", "symbol", "side", "quantity", "price", "identifier", "rejection_reason"})

	for _, r := range rejected {
		e := r.Execution
		writer.Write([]string{
			e.Timestamp.Format(timestampLayout),
			e.Symbol,
			string(e.Side),
			strconv.FormatInt(e.Quantity, 10),
			strconv.FormatFloat(e.Price, 'f', -1, 64),
			e.ExternalID,
			r.Reason,
		})
	}
	return writer.Error()
}
