package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// entryColumns is the column list used for SELECT statements on the entries table.
const entryColumns = `id, key, type, content, title, section, subsection,
	metadata, is_published, sort_order, revision, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryGetEntry(ctx context.Context, db executor, key string) (*model.Entry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE key = $1`, key)
	e, err := scanEntry(row)
	if err != nil {
		return nil, classify("get entry", err)
	}
	return e, nil
}

func queryGetEntryByID(ctx context.Context, db executor, id string) (*model.Entry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		return nil, classify("get entry by id", err)
	}
	return e, nil
}

func queryCreateEntry(ctx context.Context, db executor, e *model.Entry, now time.Time) error {
	if err := store.PrepareCreate(e, now); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO entries (
			id, key, type, content, title, section, subsection,
			metadata, is_published, sort_order, revision, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13
		)`,
		e.ID,
		e.Key,
		string(e.Type),
		e.Content,
		e.Title,
		e.Section,
		e.Subsection,
		jsonBytes(e.Metadata),
		e.IsPublished,
		e.Order,
		e.Revision,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return classify("create entry", err)
}

// queryReplaceEntry overwrites the row for e.Key in one statement. The
// revision check is part of the WHERE clause so a guarded replace cannot
// interleave with another writer.
func queryReplaceEntry(ctx context.Context, db executor, e *model.Entry, expectedRevision int64, now time.Time) error {
	row := db.QueryRowContext(ctx, `
		UPDATE entries SET
			type = $2, content = $3, title = $4, section = $5, subsection = $6,
			metadata = $7, is_published = $8, sort_order = $9,
			revision = revision + 1,
			updated_at = GREATEST($10, created_at)
		WHERE key = $1 AND ($11::bigint = 0 OR revision = $11::bigint)
		RETURNING id, revision, created_at, updated_at`,
		e.Key,
		string(e.Type),
		e.Content,
		e.Title,
		e.Section,
		e.Subsection,
		jsonBytes(e.Metadata),
		e.IsPublished,
		e.Order,
		now,
		expectedRevision,
	)
	err := row.Scan(&e.ID, &e.Revision, &e.CreatedAt, &e.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return classify("replace entry", err)
	}
	if expectedRevision == 0 {
		return store.ErrNotFound
	}

	// Either the key is gone or the revision moved on.
	var actual int64
	err = db.QueryRowContext(ctx, `SELECT revision FROM entries WHERE key = $1`, e.Key).Scan(&actual)
	if err != nil {
		return classify("replace entry", err)
	}
	return store.CheckRevision(expectedRevision, actual)
}

// queryDeleteEntry removes by key first and falls back to id.
func queryDeleteEntry(ctx context.Context, db executor, idOrKey string) error {
	for _, q := range []string{
		`DELETE FROM entries WHERE key = $1`,
		`DELETE FROM entries WHERE id = $1`,
	} {
		res, err := db.ExecContext(ctx, q, idOrKey)
		if err != nil {
			return classify("delete entry", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return store.Unavailable("rows affected", err)
		}
		if n > 0 {
			return nil
		}
	}
	return store.ErrNotFound
}

func queryListEntries(ctx context.Context, db executor, filter model.EntryFilter) ([]*model.Entry, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Section != "" {
		whereClauses = append(whereClauses, "section = "+nextArg())
		args = append(args, filter.Section)
	}
	if filter.Subsection != "" {
		whereClauses = append(whereClauses, "subsection = "+nextArg())
		args = append(args, filter.Subsection)
	}
	if filter.Type != "" {
		whereClauses = append(whereClauses, "type = "+nextArg())
		args = append(args, string(filter.Type))
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	q := "SELECT " + entryColumns + " FROM entries" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify("list entries", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, classify("list entries", err)
	}
	return entries, nil
}

// sortColumns maps whitelisted sort fields to table columns.
var sortColumns = map[string]string{
	store.SortOrder:     "sort_order",
	store.SortKey:       "key",
	store.SortTitle:     "title",
	store.SortCreatedAt: "created_at",
	store.SortUpdatedAt: "updated_at",
}

// parseSortClause converts a sort expression into an ORDER BY clause. Key is
// always the final tiebreaker.
func parseSortClause(sort string) string {
	field, desc := store.ParseSort(sort)
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	col := sortColumns[field]
	if col == "key" {
		return "key " + dir
	}
	return col + " " + dir + ", key ASC"
}
