// Package postgres implements the storage ports on PostgreSQL through sqlx and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"n1core/domain/core"
	"n1core/internal/errors"
)

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, url string, maxOpenConns int) (*sqlx.DB, error) {
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// jsonb stores any value as a JSONB column
type jsonb struct {
	v interface{}
}

// Value implements driver.Valuer interface
func (j jsonb) Value() (driver.Value, error) {
	if j.v == nil {
		return nil, nil
	}
	return json.Marshal(j.v)
}

// Scan implements sql.Scanner interface. The target must be a pointer.
func (j jsonb) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source %T", value)
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, j.v)
}

// datePtr converts a nullable DATE column into a calendar date
func datePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	d := core.DateOf(t.Time)
	return &d
}

func nullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return core.DateOf(*t)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.DatabaseError(fmt.Sprintf(format, args...), err)
}
