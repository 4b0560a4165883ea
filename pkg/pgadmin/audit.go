package pgadmin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

const NotSet = "NOT SET"

// AuditSettingNames are read with SHOW before configuration.
var AuditSettingNames = []string{"pgaudit.log", "pgaudit.log_catalog", "pgaudit.log_parameter"}

// DesiredAuditSettings are applied per database by ConfigureAudit.
var DesiredAuditSettings = []Setting{
	{Name: "pgaudit.log", Value: "READ, WRITE, DDL, MISC"},
	{Name: "pgaudit.log_catalog", Value: "on"},
	{Name: "pgaudit.log_parameter", Value: "on"},
}

// Setting is one server parameter and where its value came from.
type Setting struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source,omitempty"`
}

// AuditInstalled reports whether the pgaudit extension exists.
func AuditInstalled(ctx context.Context, s Session) (bool, error) {
	var n int
	if err := s.QueryRow(ctx, `SELECT count(*) FROM pg_extension WHERE extname = 'pgaudit'`).Scan(&n); err != nil {
		return false, fmt.Errorf("check pgaudit extension: %w", err)
	}
	return n > 0, nil
}

// CurrentAuditSettings returns the session value of each audit setting,
// NotSet for settings the server does not recognise.
func CurrentAuditSettings(ctx context.Context, s Session) []Setting {
	out := make([]Setting, 0, len(AuditSettingNames))
	for _, name := range AuditSettingNames {
		st := Setting{Name: name, Value: NotSet}
		var v string
		if err := s.QueryRow(ctx, "SHOW "+name).Scan(&v); err == nil {
			st.Value = v
		}
		out = append(out, st)
	}
	return out
}

// ConfigureAudit sets DesiredAuditSettings on database. New sessions pick
// them up; the current one does not.
func ConfigureAudit(ctx context.Context, s Session, database string) error {
	db := pgx.Identifier{database}.Sanitize()
	for _, st := range DesiredAuditSettings {
		stmt := fmt.Sprintf("ALTER DATABASE %s SET %s = '%s'", db, st.Name, st.Value)
		if _, err := s.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set %s: %w", st.Name, err)
		}
	}
	return nil
}

// ListAuditSettings reads every pgaudit parameter from pg_settings.
func ListAuditSettings(ctx context.Context, s Session) ([]Setting, error) {
	rows, err := s.Query(ctx, `
		SELECT name, setting, source
		FROM pg_settings
		WHERE name LIKE 'pgaudit%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list pgaudit settings: %w", err)
	}
	settings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Setting, error) {
		var st Setting
		err := row.Scan(&st.Name, &st.Value, &st.Source)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("list pgaudit settings: %w", err)
	}
	return settings, nil
}

// AuditReport is the outcome of SetupAudit for one target.
type AuditReport struct {
	Target    string    `json:"target"`
	Installed bool      `json:"installed"`
	Before    []Setting `json:"before"`
	After     []Setting `json:"after"`
}

// SetupAudit checks pgaudit on target, enables the desired settings for
// the target database, then reconnects to read back the effective values.
func SetupAudit(ctx context.Context, dial Dialer, target sqlexec.Target, logger *zap.Logger) (AuditReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rep := AuditReport{Target: target.Name()}

	s, err := dial(ctx, target)
	if err != nil {
		return rep, err
	}
	defer func() { _ = s.Close(context.WithoutCancel(ctx)) }()

	rep.Installed, err = AuditInstalled(ctx, s)
	if err != nil {
		return rep, err
	}
	if !rep.Installed {
		logger.Warn("pgaudit_not_installed", zap.String("target", rep.Target))
		return rep, ErrAuditNotInstalled
	}

	rep.Before = CurrentAuditSettings(ctx, s)
	if err := ConfigureAudit(ctx, s, target.Database); err != nil {
		return rep, err
	}
	logger.Info("pgaudit_configured", zap.String("target", rep.Target), zap.String("database", target.Database))

	verify, err := dial(ctx, target)
	if err != nil {
		return rep, fmt.Errorf("reconnect: %w", err)
	}
	defer func() { _ = verify.Close(context.WithoutCancel(ctx)) }()

	rep.After, err = ListAuditSettings(ctx, verify)
	return rep, err
}
