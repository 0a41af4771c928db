// Package sqlstore implements the persistence handlers on top of bun, with
// SQLite and PostgreSQL dialects.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/unkn0wn-root/tagcache/persistence"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver string
	DSN    string
}

// Open connects and pings the database. SQLite connections are limited to
// one so that in-memory databases are shared by every query.
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
	}

	var db *bun.DB
	switch cfg.Driver {
	case DriverSQLite:
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		_ = sqldb.Close()
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

var models = []any{
	(*sectionRow)(nil),
	(*contentRow)(nil),
	(*versionRow)(nil),
	(*fieldRow)(nil),
	(*locationRow)(nil),
}

// CreateSchema creates the tables when they do not exist yet.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("sqlstore: create table for %T: %w", m, err)
		}
	}
	return nil
}

// Handler implements persistence.Handler.
type Handler struct {
	db  *bun.DB
	now func() time.Time

	sections  *sectionHandler
	contents  *contentHandler
	locations *locationHandler
}

var _ persistence.Handler = (*Handler)(nil)

func New(db *bun.DB) *Handler {
	h := &Handler{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Second) }}
	h.sections = &sectionHandler{h: h}
	h.contents = &contentHandler{h: h}
	h.locations = &locationHandler{h: h}
	return h
}

func (h *Handler) SectionHandler() persistence.SectionHandler   { return h.sections }
func (h *Handler) ContentHandler() persistence.ContentHandler   { return h.contents }
func (h *Handler) LocationHandler() persistence.LocationHandler { return h.locations }

// DB exposes the underlying connection.
func (h *Handler) DB() *bun.DB { return h.db }

func (h *Handler) Close() error { return h.db.Close() }

// notFound maps sql.ErrNoRows to a persistence not-found error.
func notFound(err error, kind string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewNotFound(kind, id)
	}
	return err
}

// mustAffect returns a not-found error when res changed no rows.
func mustAffect(res sql.Result, kind string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.NewNotFound(kind, id)
	}
	return nil
}
