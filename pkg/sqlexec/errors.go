package sqlexec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConnectError means a connection to a target could not be established.
type ConnectError struct {
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// StatementError wraps a failed statement. The statement is rolled back
// before the error is returned.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %q: %v", abbreviate(e.Statement, 60), e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Benign reports whether the failure only means an object was already
// present or already gone.
func (e *StatementError) Benign() bool {
	return IsBenign(e.Err)
}

// SQLSTATE codes that carry the same meaning as the benign message fragments.
var benignCodes = map[string]bool{
	"42P07": true, // duplicate_table
	"42710": true, // duplicate_object
	"42P06": true, // duplicate_schema
	"42701": true, // duplicate_column
	"42723": true, // duplicate_function
	"42P04": true, // duplicate_database
	"42P01": true, // undefined_table
	"42704": true, // undefined_object
	"3F000": true, // invalid_schema_name
	"42883": true, // undefined_function
	"42703": true, // undefined_column
}

// IsBenign classifies an error as an "already exists" or "does not exist"
// failure.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && benignCodes[pgErr.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "does not exist")
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
