package sqlexec

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const closeTimeout = 5 * time.Second

// PostgresConnector opens pgx sessions. Statements use the simple query
// protocol so arbitrary script text runs unprepared.
type PostgresConnector struct {
	logger *zap.Logger
}

func NewPostgresConnector(logger *zap.Logger) *PostgresConnector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresConnector{logger: logger}
}

// Config builds the pgx connection config for a target.
func (c *PostgresConnector) Config(target Target) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(target.ConnString())
	if err != nil {
		return nil, err
	}
	cfg.RuntimeParams["application_name"] = target.appName()
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	if target.ConnectTimeout > 0 {
		cfg.ConnectTimeout = target.ConnectTimeout
	}
	return cfg, nil
}

func (c *PostgresConnector) Open(ctx context.Context, target Target) (Conn, error) {
	cfg, err := c.Config(target)
	if err != nil {
		return nil, &ConnectError{Target: target.Name(), Err: err}
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		c.logger.Warn("postgres_connect_failed", zap.String("target", target.Name()), zap.Error(err))
		return nil, &ConnectError{Target: target.Name(), Err: err}
	}
	return &pgConn{conn: conn}, nil
}

type pgConn struct {
	conn *pgx.Conn
}

func (c *pgConn) Exec(ctx context.Context, stmt string) error {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return &StatementError{Statement: stmt, Err: err}
	}
	if _, err := tx.Exec(ctx, stmt); err != nil {
		rollback(tx)
		return &StatementError{Statement: stmt, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &StatementError{Statement: stmt, Err: err}
	}
	return nil
}

func (c *pgConn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.conn.Close(ctx)
}

// rollback uses its own deadline so a cancelled statement context still
// releases the transaction.
func rollback(tx pgx.Tx) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = tx.Rollback(ctx)
}
