package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
)

// ReadBars parses an OHLCV CSV export into bars. Expected columns:
// timestamp, symbol, interval, open, high, low, close, volume, session.
// The session column is optional; missing values default to regular.
func ReadBars(ctx context.Context, path string, logger ports.Logger) ([]*domain.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bar file '%s': %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse bar file '%s': %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%w: bar file '%s' is empty", ports.ErrInvalidRequest, path)
	}

	cols, err := indexColumns(records[0], "timestamp", "symbol", "interval", "open", "high", "low", "close", "volume")
	if err != nil {
		return nil, fmt.Errorf("bar file '%s': %w", path, err)
	}

	bars := make([]*domain.Bar, 0, len(records)-1)
	for i, record := range records[1:] {
		bar, err := parseBar(record, cols)
		if err != nil {
			return nil, fmt.Errorf("bar file '%s' row %d: %w", path, i+2, err)
		}
		bars = append(bars, bar)
	}

	logger.Info(ctx, "Bar file read", map[string]interface{}{"file": path, "count": len(bars)})
	return bars, nil
}

func parseBar(record []string, cols columnIndex) (*domain.Bar, error) {
	rawTime := cols.get(record, "timestamp")
	ts, err := time.Parse(time.RFC3339, rawTime)
	if err != nil {
		// Fall back to the broker report layout.
		ts, err = time.Parse(timestampLayout, rawTime)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", rawTime, err)
		}
	}

	b := &domain.Bar{
		Timestamp: ts,
		Symbol:    cols.get(record, "symbol"),
		Interval:  cols.get(record, "interval"),
		Session:   domain.SessionRegular,
	}
	if session := cols.get(record, "session"); session != "" {
		b.Session = domain.MarketSession(session)
	}

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"volume", &b.Volume},
	} {
		v, err := cols.getFloat(record, f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return b, nil
}

// WriteBars writes bars to a CSV file in the layout ReadBars consumes.
func WriteBars(bars []*domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"timestamp", "symbol", "interval", "open", "high", "low", "close", "volume", "session"})

	for _, b := range bars {
		writer.Write([]string{
			b.Timestamp.Format(time.RFC3339),
			b.Symbol,
			b.Interval,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
			string(b.Session),
		})
	}
	return writer.Error()
}
