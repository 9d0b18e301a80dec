package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

const (
	// uniqueViolation is the SQLSTATE PostgreSQL reports for a duplicate key.
	uniqueViolation = "23505"
	// dataException is the SQLSTATE class for malformed values, such as a NUL
	// byte in a text column (22021).
	dataException = "22"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEntry scans a single row into a model.Entry.
// The row must contain columns in the order defined by entryColumns.
func scanEntry(row scannable) (*model.Entry, error) {
	var (
		e        model.Entry
		metadata []byte
	)
	err := row.Scan(
		&e.ID,
		&e.Key,
		&e.Type,
		&e.Content,
		&e.Title,
		&e.Section,
		&e.Subsection,
		&metadata,
		&e.IsPublished,
		&e.Order,
		&e.Revision,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		e.Metadata = json.RawMessage(metadata)
	}
	return &e, nil
}

// scanEntries scans multiple rows into a slice of model.Entry pointers.
func scanEntries(rows *sql.Rows) ([]*model.Entry, error) {
	entries := []*model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// jsonBytes returns nil for empty metadata so the column stores SQL NULL.
func jsonBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// classify maps driver errors onto the store sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case string(pqErr.Code) == uniqueViolation:
			return store.ErrDuplicateKey
		case pqErr.Code.Class() == dataException:
			return fmt.Errorf("%s: %w: %s", op, store.ErrInvalidValue, pqErr.Message)
		}
	}
	return store.Unavailable(op, err)
}
