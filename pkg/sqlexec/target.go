package sqlexec

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Driver selects the connector used for a target.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite3"
)

const (
	DefaultPort           = 5432
	DefaultSSLMode        = "require"
	DefaultConnectTimeout = 10 * time.Second
	DefaultAppName        = "pganomaly"
)

// Target identifies one database the demo runs against.
type Target struct {
	Driver          Driver        `json:"driver"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	User            string        `json:"user"`
	Password        string        `json:"-"`
	SSLMode         string        `json:"sslmode"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	ApplicationName string        `json:"application_name"`
}

// Name is the short label used in logs, events and status keys.
func (t Target) Name() string {
	if t.Driver == DriverSQLite {
		return t.Database
	}
	return t.Host
}

// String renders the target without credentials.
func (t Target) String() string {
	if t.Driver == DriverSQLite {
		return "sqlite3://" + t.Database
	}
	return fmt.Sprintf("postgres://%s@%s/%s", t.User, net.JoinHostPort(t.Host, strconv.Itoa(t.port())), t.Database)
}

// ConnString builds a libpq URL accepted by pgx.ParseConfig.
func (t Target) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(t.port())),
		Path:   "/" + t.Database,
	}
	if t.Password != "" {
		u.User = url.UserPassword(t.User, t.Password)
	} else if t.User != "" {
		u.User = url.User(t.User)
	}

	q := url.Values{}
	sslmode := t.SSLMode
	if sslmode == "" {
		sslmode = DefaultSSLMode
	}
	q.Set("sslmode", sslmode)
	timeout := t.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	q.Set("connect_timeout", strconv.Itoa(int(timeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

func (t Target) port() int {
	if t.Port == 0 {
		return DefaultPort
	}
	return t.Port
}

func (t Target) appName() string {
	if t.ApplicationName == "" {
		return DefaultAppName
	}
	return t.ApplicationName
}
