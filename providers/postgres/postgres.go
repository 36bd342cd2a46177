// Package postgres converges db_database resources: a named database and
// the role that owns it, on a local PostgreSQL server.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/provider"
)

// Attributes:
//
//	database - database name, defaults to the resource name
//	owner    - owning role, created if missing (required)
//	password - password for the owning role
//	encoding - database encoding, defaults to UTF8
type Provider struct {
	dsn string
	db  *sql.DB
}

func New(dsn string) *Provider {
	return &Provider{dsn: dsn}
}

func (p *Provider) conn() (*sql.DB, error) {
	if p.db != nil {
		return p.db, nil
	}
	if p.dsn == "" {
		return nil, fmt.Errorf("db_database: settings.postgres_dsn is not configured")
	}
	db, err := sql.Open("postgres", p.dsn)
	if err != nil {
		return nil, err
	}
	p.db = db
	return db, nil
}

func dbName(res *ir.Resource) string {
	return res.StringAttrDefault("database", res.Name)
}

func (p *Provider) Check(ctx context.Context, res *ir.Resource) (provider.State, error) {
	db, err := p.conn()
	if err != nil {
		return provider.State{}, err
	}

	owner := res.StringAttr("owner")
	if owner == "" {
		return provider.State{}, fmt.Errorf("db_database %s: owner is required", res.Name)
	}

	roleExists, err := rowExists(ctx, db, "SELECT 1 FROM pg_roles WHERE rolname = $1", owner)
	if err != nil {
		return provider.State{}, err
	}
	dbExists, err := rowExists(ctx, db, "SELECT 1 FROM pg_database WHERE datname = $1", dbName(res))
	if err != nil {
		return provider.State{}, err
	}

	switch {
	case roleExists && dbExists:
		return provider.State{Exists: true, InSync: true}, nil
	case dbExists:
		return provider.State{Exists: true, Detail: fmt.Sprintf("role %s missing", owner)}, nil
	default:
		return provider.State{Exists: roleExists, Detail: fmt.Sprintf("database %s missing", dbName(res))}, nil
	}
}

func (p *Provider) Apply(ctx context.Context, res *ir.Resource) (ir.Outcome, error) {
	db, err := p.conn()
	if err != nil {
		return ir.OutcomeFailed, err
	}

	owner := res.StringAttr("owner")
	if owner == "" {
		return ir.OutcomeFailed, fmt.Errorf("db_database %s: owner is required", res.Name)
	}

	changed := false

	roleExists, err := rowExists(ctx, db, "SELECT 1 FROM pg_roles WHERE rolname = $1", owner)
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if !roleExists {
		if _, err := db.ExecContext(ctx, createRoleStmt(owner, res.StringAttr("password"))); err != nil {
			return ir.OutcomeFailed, fmt.Errorf("create role %s: %w", owner, err)
		}
		changed = true
	}

	dbExists, err := rowExists(ctx, db, "SELECT 1 FROM pg_database WHERE datname = $1", dbName(res))
	if err != nil {
		return ir.OutcomeFailed, err
	}
	if !dbExists {
		if _, err := db.ExecContext(ctx, createDatabaseStmt(dbName(res), owner, res.StringAttrDefault("encoding", "UTF8"))); err != nil {
			return ir.OutcomeFailed, fmt.Errorf("create database %s: %w", dbName(res), err)
		}
		changed = true
	}

	if changed {
		return ir.OutcomeChanged, nil
	}
	return ir.OutcomeUnchanged, nil
}

func (p *Provider) Refresh(ctx context.Context, res *ir.Resource) error {
	return nil
}

func rowExists(ctx context.Context, db *sql.DB, query string, args ...any) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DDL cannot take placeholders; identifiers and the password literal are
// quoted explicitly.

func createRoleStmt(role, password string) string {
	stmt := fmt.Sprintf("CREATE ROLE %s LOGIN", pq.QuoteIdentifier(role))
	if password != "" {
		stmt += " PASSWORD " + pq.QuoteLiteral(password)
	}
	return stmt
}

func createDatabaseStmt(name, owner, encoding string) string {
	return fmt.Sprintf("CREATE DATABASE %s OWNER %s ENCODING %s",
		pq.QuoteIdentifier(name), pq.QuoteIdentifier(owner), pq.QuoteLiteral(encoding))
}
