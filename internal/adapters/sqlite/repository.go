package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.ExecutionStore, ports.TradeStore and
// ports.BarStore interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/kairos.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		commission REAL NOT NULL DEFAULT 0,
		net_cash REAL NOT NULL DEFAULT 0,
		side TEXT NOT NULL,
		trade_id INTEGER NOT NULL,
		open_volume INTEGER NOT NULL,
		is_entry INTEGER NOT NULL DEFAULT 0,
		is_exit INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS algo_trades (
		rowid_pk INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id INTEGER NOT NULL,
		run_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		stop_price REAL NOT NULL,
		quantity INTEGER NOT NULL,
		risk_size REAL NOT NULL,
		risk_per_trade REAL NOT NULL,
		capital_required REAL NOT NULL,
		closed INTEGER NOT NULL DEFAULT 0,
		exit_price REAL DEFAULT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		exit_reason TEXT DEFAULT NULL,
		risk_reward REAL DEFAULT NULL,
		winning_trade INTEGER DEFAULT NULL,
		perc_return REAL DEFAULT NULL,
		duration REAL DEFAULT NULL,
		UNIQUE (run_id, trade_id)
	);

	CREATE TABLE IF NOT EXISTS bars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		session TEXT NOT NULL DEFAULT 'regular',
		UNIQUE (symbol, interval, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_executions_symbol_ts ON executions (symbol, timestamp);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_executions_external_id
		ON executions (external_id) WHERE external_id != '';
	CREATE INDEX IF NOT EXISTS idx_algo_trades_run_entry ON algo_trades (run_id, entry_time);
	CREATE INDEX IF NOT EXISTS idx_bars_symbol_ts ON bars (symbol, timestamp);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- ExecutionStore Implementation ---

// SaveExecutions persists a batch of annotated executions in one transaction.
func (r *Repository) SaveExecutions(ctx context.Context, execs []*domain.Execution) error {
	if len(execs) == 0 {
		return nil
	}
	const query = `
	INSERT INTO executions (account_id, external_id, order_id, symbol, timestamp, quantity,
	                        price, commission, net_cash, side, trade_id, open_volume, is_entry, is_exit)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin execution insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare execution insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range execs {
		result, err := stmt.ExecContext(ctx,
			e.AccountID, e.ExternalID, e.OrderID, e.Symbol, e.Timestamp, e.Quantity,
			e.Price, e.Commission, e.NetCash, string(e.Side), e.TradeID, e.OpenVolume,
			boolToInt(e.IsEntry), boolToInt(e.IsExit))
		if err != nil {
			return fmt.Errorf("failed to insert execution %s for symbol %s: %w", e.ExternalID, e.Symbol, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID for execution %s: %w", e.ExternalID, err)
		}
		e.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit execution insert transaction: %w", err)
	}
	r.logger.Debug(ctx, "Executions saved", map[string]interface{}{"count": len(execs)})
	return nil
}

// ExistingExternalIDs returns all persisted broker execution identifiers.
// Identifier-less executions are excluded; they cannot be de-duplicated.
func (r *Repository) ExistingExternalIDs(ctx context.Context) (map[string]struct{}, error) {
	const query = `SELECT external_id FROM executions WHERE external_id != ''`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing execution IDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan execution ID: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution ID rows: %w", err)
	}
	return ids, nil
}

// OpenPositions returns the net open volume and active trade id per symbol,
// restricted to symbols whose net volume is nonzero. All executions since a
// symbol last went flat carry the same trade id, and ids only increase, so
// MAX(trade_id) is the active trade.
func (r *Repository) OpenPositions(ctx context.Context) (map[string]ports.OpenPosition, error) {
	const query = `
	SELECT symbol, SUM(quantity) AS open_volume, MAX(trade_id)
	FROM executions
	GROUP BY symbol
	HAVING open_volume != 0`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	open := make(map[string]ports.OpenPosition)
	for rows.Next() {
		var symbol string
		var pos ports.OpenPosition
		if err := rows.Scan(&symbol, &pos.OpenVolume, &pos.ActiveTradeID); err != nil {
			return nil, fmt.Errorf("failed to scan open position: %w", err)
		}
		open[symbol] = pos
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open position rows: %w", err)
	}
	return open, nil
}

// MaxTradeID returns the highest trade id assigned so far, or 0.
func (r *Repository) MaxTradeID(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(MAX(trade_id), 0) FROM executions`
	var maxID int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to query max trade ID: %w", err)
	}
	return maxID, nil
}

// ListExecutions returns all persisted executions ordered by timestamp.
func (r *Repository) ListExecutions(ctx context.Context) ([]*domain.Execution, error) {
	const query = `
	SELECT id, account_id, external_id, order_id, symbol, timestamp, quantity,
	       price, commission, net_cash, side, trade_id, open_volume, is_entry, is_exit
	FROM executions
	ORDER BY timestamp ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []*domain.Execution
	for rows.Next() {
		var e domain.Execution
		var side string
		var isEntry, isExit int
		if err := rows.Scan(&e.ID, &e.AccountID, &e.ExternalID, &e.OrderID, &e.Symbol,
			&e.Timestamp, &e.Quantity, &e.Price, &e.Commission, &e.NetCash, &side,
			&e.TradeID, &e.OpenVolume, &isEntry, &isExit); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.Side = domain.OrderSide(side)
		e.IsEntry = isEntry != 0
		e.IsExit = isExit != 0
		execs = append(execs, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution rows: %w", err)
	}
	return execs, nil
}

// --- TradeStore Implementation ---

// SaveTrade persists a newly opened trade.
func (r *Repository) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO algo_trades (trade_id, run_id, symbol, direction, entry_price, entry_time,
	                         stop_price, quantity, risk_size, risk_per_trade, capital_required, closed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID, trade.RunID, trade.Symbol, string(trade.Direction), trade.EntryPrice, trade.EntryTime,
		trade.StopPrice, trade.Quantity, trade.RiskSize, trade.RiskPerTrade, trade.CapitalRequired)
	if err != nil {
		return fmt.Errorf("failed to insert trade %d for symbol %s: %w", trade.ID, trade.Symbol, err)
	}
	r.logger.Debug(ctx, "Trade saved", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "runID": trade.RunID})
	return nil
}

// CloseTrade updates a persisted trade with its exit fields.
func (r *Repository) CloseTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	UPDATE algo_trades
	SET closed = 1, exit_price = ?, exit_time = ?, exit_reason = ?,
	    risk_reward = ?, winning_trade = ?, perc_return = ?, duration = ?
	WHERE trade_id = ? AND run_id = ?`

	result, err := r.db.ExecContext(ctx, query,
		trade.ExitPrice, trade.ExitTime, string(trade.ExitReason),
		trade.RiskReward, trade.WinningTrade, trade.PercReturn, trade.Duration,
		trade.ID, trade.RunID)
	if err != nil {
		return fmt.Errorf("%w: failed to close trade %d: %v", ports.ErrUpdateFailed, trade.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for close trade %d: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade %d in run %q not found for close: %w", trade.ID, trade.RunID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade closed", map[string]interface{}{"tradeID": trade.ID, "percReturn": trade.PercReturn})
	return nil
}

// FindTrades retrieves trades for a run scope, ordered by entry time.
func (r *Repository) FindTrades(ctx context.Context, runID string) ([]*domain.Trade, error) {
	const query = `
	SELECT trade_id, run_id, symbol, direction, entry_price, entry_time, stop_price,
	       quantity, risk_size, risk_per_trade, capital_required, closed,
	       COALESCE(exit_price, 0), exit_time, COALESCE(exit_reason, ''),
	       COALESCE(risk_reward, 0), COALESCE(winning_trade, 0),
	       COALESCE(perc_return, 0), COALESCE(duration, 0)
	FROM algo_trades
	WHERE run_id = ?
	ORDER BY entry_time ASC`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for run %q: %w", runID, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// RiskConsumed returns the risk fraction committed for a calendar day within
// a run scope: realized returns of trades closed that day plus reserved risk
// of trades opened that day and still open.
func (r *Repository) RiskConsumed(ctx context.Context, runID string, day time.Time) (float64, error) {
	const query = `
	SELECT COALESCE(SUM(CASE WHEN closed = 1 AND date(exit_time) = ? THEN ABS(perc_return) ELSE 0 END), 0)
	     + COALESCE(SUM(CASE WHEN closed = 0 AND date(entry_time) = ? THEN risk_per_trade ELSE 0 END), 0)
	FROM algo_trades
	WHERE run_id = ?`

	dayStr := day.Format("2006-01-02")
	var consumed float64
	err := r.db.QueryRowContext(ctx, query, dayStr, dayStr, runID).Scan(&consumed)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to query risk consumed for %s: %v", ports.ErrQueryFailed, dayStr, err)
	}
	return consumed, nil
}

// --- BarStore Implementation ---

// SaveBars persists a batch of bars in one transaction. Re-imported bars
// replace existing rows for the same symbol, interval and timestamp.
func (r *Repository) SaveBars(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	const query = `
	INSERT OR REPLACE INTO bars (symbol, interval, timestamp, open, high, low, close, volume, session)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bar insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare bar insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx,
			b.Symbol, b.Interval, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, string(b.Session))
		if err != nil {
			return fmt.Errorf("failed to insert bar %s %s: %w", b.Symbol, b.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar insert transaction: %w", err)
	}
	r.logger.Debug(ctx, "Bars saved", map[string]interface{}{"count": len(bars)})
	return nil
}

// FindBars retrieves bars for a symbol ordered by timestamp.
func (r *Repository) FindBars(ctx context.Context, symbol string, regularOnly bool) ([]*domain.Bar, error) {
	query := `
	SELECT symbol, interval, timestamp, open, high, low, close, volume, session
	FROM bars
	WHERE symbol = ?`
	if regularOnly {
		query += ` AND session = 'regular'`
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	bars := make([]*domain.Bar, 0)
	for rows.Next() {
		b := &domain.Bar{}
		var session string
		if err := rows.Scan(&b.Symbol, &b.Interval, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &session); err != nil {
			return nil, fmt.Errorf("failed to scan bar during FindBars: %w", err)
		}
		b.Session = domain.MarketSession(session)
		bars = append(bars, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bar rows: %w", err)
	}
	return bars, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var direction, exitReason string
	var closed int
	var exitTime sql.NullTime
	err := s.Scan(
		&t.ID, &t.RunID, &t.Symbol, &direction, &t.EntryPrice, &t.EntryTime, &t.StopPrice,
		&t.Quantity, &t.RiskSize, &t.RiskPerTrade, &t.CapitalRequired, &closed,
		&t.ExitPrice, &exitTime, &exitReason,
		&t.RiskReward, &t.WinningTrade, &t.PercReturn, &t.Duration)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Direction = domain.Direction(direction)
	t.Closed = closed == 1
	if exitTime.Valid {
		t.ExitTime = exitTime.Time
	}
	t.ExitReason = domain.ExitReason(exitReason)
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
