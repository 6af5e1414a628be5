package dbmigrate

import (
	"fmt"
	"net/url"

	"github.com/fdg312/nutrition-planner/internal/config"
)

// DefaultMigrationsDir пустой: Run берёт миграции, встроенные в бинарник.
const DefaultMigrationsDir = ""

// transactionPoolerPort — порт PgBouncer в режиме transaction (Supabase, Neon).
// DDL через него ломается на prepared statements goose.
const transactionPoolerPort = "6543"

// Target is the database a migration run applies to.
type Target struct {
	URL     string
	Source  string // env var the URL came from
	Warning string
}

// Redacted returns the URL with the password masked, for logs.
func (t Target) Redacted() string {
	u, err := url.Parse(t.URL)
	if err != nil {
		return "(unparsable)"
	}
	return u.Redacted()
}

// SelectTarget picks the URL for migrations: DATABASE_URL_DIRECT, then
// DATABASE_URL, then DATABASE_URL_POOLED with a warning. With requireDirect
// only DATABASE_URL_DIRECT is accepted. Non-postgres URLs are rejected.
func SelectTarget(cfg *config.Config, requireDirect bool) (Target, error) {
	var t Target
	switch {
	case requireDirect:
		if cfg.DatabaseURLDirect == "" {
			return Target{}, fmt.Errorf("DATABASE_URL_DIRECT is required for DDL/migrations")
		}
		t = Target{URL: cfg.DatabaseURLDirect, Source: "DATABASE_URL_DIRECT"}
	case cfg.DatabaseURLDirect != "":
		t = Target{URL: cfg.DatabaseURLDirect, Source: "DATABASE_URL_DIRECT"}
	case cfg.DatabaseURLRaw != "":
		t = Target{URL: cfg.DatabaseURLRaw, Source: "DATABASE_URL"}
	case cfg.DatabaseURLPooled != "":
		t = Target{
			URL:     cfg.DatabaseURLPooled,
			Source:  "DATABASE_URL_POOLED",
			Warning: "using pooled connection for DDL is not recommended; set DATABASE_URL_DIRECT",
		}
	default:
		return Target{}, fmt.Errorf("no database URL configured (set DATABASE_URL_DIRECT or DATABASE_URL)")
	}

	u, err := url.Parse(t.URL)
	if err != nil {
		return Target{}, fmt.Errorf("%s is not a valid URL: %w", t.Source, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Target{}, fmt.Errorf("%s: unsupported scheme %q, migrations need postgres", t.Source, u.Scheme)
	}
	if t.Warning == "" && u.Port() == transactionPoolerPort {
		t.Warning = fmt.Sprintf("%s points at port %s, which is usually a transaction pooler; set DATABASE_URL_DIRECT", t.Source, transactionPoolerPort)
	}
	return t, nil
}
