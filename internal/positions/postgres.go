package positions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// postgresStore persists positions in PostgreSQL. Schema migrations are
// managed outside this repository; the expected table is:
//
//	CREATE TABLE positions (
//	    id             TEXT PRIMARY KEY,
//	    signal_id      TEXT NOT NULL,
//	    symbol         TEXT NOT NULL,
//	    timeframe      TEXT NOT NULL,
//	    direction      TEXT NOT NULL,
//	    quantity       INT NOT NULL,
//	    entry_price    DOUBLE PRECISION NOT NULL,
//	    entry_time     TIMESTAMPTZ NOT NULL,
//	    current_price  DOUBLE PRECISION,
//	    unrealized_pnl DOUBLE PRECISION,
//	    status         TEXT NOT NULL,
//	    exit_price     DOUBLE PRECISION,
//	    exit_time      TIMESTAMPTZ,
//	    realized_pnl   DOUBLE PRECISION
//	);
//	CREATE UNIQUE INDEX positions_open_signal ON positions (signal_id) WHERE status = 'open';
type postgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresStore creates a PostgreSQL-backed position store
func NewPostgresStore(db *sqlx.DB, timeout time.Duration) Store {
	return &postgresStore{db: db, timeout: timeout}
}

// Connect opens and pings a PostgreSQL connection for the position store
func Connect(dsn string, timeout time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

func (s *postgresStore) Insert(ctx context.Context, pos *domain.Position) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO positions (id, signal_id, symbol, timeframe, direction, quantity, entry_price, entry_time,
		                       current_price, unrealized_pnl, status, exit_price, exit_time, realized_pnl)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.ExecContext(ctx, query,
		pos.ID, pos.SignalID, pos.Symbol, pos.Timeframe, pos.Direction, pos.Quantity, pos.EntryPrice, pos.EntryTime,
		pos.CurrentPrice, pos.UnrealizedPnL, pos.Status, pos.ExitPrice, pos.ExitTime, pos.RealizedPnL)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate open position for signal %s: %w", pos.SignalID, err)
		}
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

func (s *postgresStore) Update(ctx context.Context, pos *domain.Position) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		UPDATE positions
		SET current_price = $2, unrealized_pnl = $3, status = $4,
		    exit_price = $5, exit_time = $6, realized_pnl = $7
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		pos.ID, pos.CurrentPrice, pos.UnrealizedPnL, pos.Status,
		pos.ExitPrice, pos.ExitTime, pos.RealizedPnL)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w", pos.ID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) GetByID(ctx context.Context, id string) (*domain.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var pos domain.Position
	err := s.db.GetContext(ctx, &pos, `SELECT * FROM positions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position %s: %w", id, err)
	}
	return &pos, nil
}

func (s *postgresStore) GetOpenBySignalID(ctx context.Context, signalID string) (*domain.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var pos domain.Position
	err := s.db.GetContext(ctx, &pos,
		`SELECT * FROM positions WHERE signal_id = $1 AND status != 'closed' ORDER BY entry_time DESC LIMIT 1`,
		signalID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position for signal %s: %w", signalID, err)
	}
	return &pos, nil
}

func (s *postgresStore) GetOpen(ctx context.Context) ([]*domain.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []domain.Position
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM positions WHERE status != 'closed'`); err != nil {
		return nil, fmt.Errorf("failed to load open positions: %w", err)
	}
	open := make([]*domain.Position, len(rows))
	for i := range rows {
		open[i] = &rows[i]
	}
	return open, nil
}
