// Package pgadmin holds the operator checks run before a demo: a connection
// probe and the pgaudit database settings the detections depend on.
package pgadmin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

// ErrAuditNotInstalled is returned by SetupAudit when the pgaudit extension
// is missing. It must be preloaded by the server before it can be enabled.
var ErrAuditNotInstalled = errors.New("pgaudit extension is not installed")

// Session is the subset of *pgx.Conn used here.
type Session interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// Dialer opens an admin session to a target.
type Dialer func(ctx context.Context, target sqlexec.Target) (Session, error)

// PgxDialer connects with the same settings as the demo connector.
func PgxDialer(logger *zap.Logger) Dialer {
	pc := sqlexec.NewPostgresConnector(logger)
	return func(ctx context.Context, target sqlexec.Target) (Session, error) {
		cfg, err := pc.Config(target)
		if err != nil {
			return nil, &sqlexec.ConnectError{Target: target.Name(), Err: err}
		}
		conn, err := pgx.ConnectConfig(ctx, cfg)
		if err != nil {
			return nil, &sqlexec.ConnectError{Target: target.Name(), Err: err}
		}
		return conn, nil
	}
}

// ProbeResult describes a reachable server.
type ProbeResult struct {
	Database   string `json:"database"`
	User       string `json:"user"`
	Version    string `json:"version"`
	UserTables int    `json:"user_tables"`
}

// Probe reads the session identity, server version and the number of
// user tables.
func Probe(ctx context.Context, s Session) (ProbeResult, error) {
	var r ProbeResult
	err := s.QueryRow(ctx, `SELECT current_database(), current_user, version()`).
		Scan(&r.Database, &r.User, &r.Version)
	if err != nil {
		return r, fmt.Errorf("probe identity: %w", err)
	}
	err = s.QueryRow(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')`).Scan(&r.UserTables)
	if err != nil {
		return r, fmt.Errorf("count user tables: %w", err)
	}
	return r, nil
}
