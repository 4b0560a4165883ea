package sqlexec

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteConnector runs the demo against a local SQLite file, for rehearsing
// scripts without a PostgreSQL server. Target.Database is the file path.
type SQLiteConnector struct {
	logger *zap.Logger
}

func NewSQLiteConnector(logger *zap.Logger) *SQLiteConnector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteConnector{logger: logger}
}

func (c *SQLiteConnector) Open(ctx context.Context, target Target) (Conn, error) {
	if target.Database == "" {
		return nil, &ConnectError{Target: target.Name(), Err: fmt.Errorf("sqlite target needs a database path")}
	}
	db, err := sql.Open("sqlite3", target.Database)
	if err != nil {
		return nil, &ConnectError{Target: target.Name(), Err: err}
	}
	// One session, as with a PostgreSQL connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		c.logger.Warn("sqlite_open_failed", zap.String("target", target.Name()), zap.Error(err))
		return nil, &ConnectError{Target: target.Name(), Err: err}
	}
	return &sqlConn{db: db}, nil
}

type sqlConn struct {
	db *sql.DB
}

func (c *sqlConn) Exec(ctx context.Context, stmt string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &StatementError{Statement: stmt, Err: err}
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		_ = tx.Rollback()
		return &StatementError{Statement: stmt, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StatementError{Statement: stmt, Err: err}
	}
	return nil
}

func (c *sqlConn) Close() error {
	return c.db.Close()
}
