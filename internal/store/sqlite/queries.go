package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// Timestamps are stored as Unix nanoseconds so they sort numerically and
// round-trip without a driver-specific time format.

const entryColumns = `id, key, type, content, title, section, subsection,
	metadata, is_published, sort_order, revision, created_at, updated_at`

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.Entry, error) {
	var (
		e                model.Entry
		metadata         sql.NullString
		created, updated int64
	)
	err := row.Scan(
		&e.ID, &e.Key, &e.Type, &e.Content, &e.Title, &e.Section, &e.Subsection,
		&metadata, &e.IsPublished, &e.Order, &e.Revision, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		e.Metadata = json.RawMessage(metadata.String)
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	e.UpdatedAt = time.Unix(0, updated).UTC()
	return &e, nil
}

func metadataArg(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return string(m)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return store.Unavailable(op, err)
}

func queryGetEntry(ctx context.Context, db executor, key string) (*model.Entry, error) {
	e, err := scanEntry(db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE key = ?`, key))
	if err != nil {
		return nil, classify("get entry", err)
	}
	return e, nil
}

func queryGetEntryByID(ctx context.Context, db executor, id string) (*model.Entry, error) {
	e, err := scanEntry(db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	if err != nil {
		return nil, classify("get entry by id", err)
	}
	return e, nil
}

// queryCreateEntry inserts unless the key is taken; a conflict on key leaves
// the table untouched and is reported as a duplicate.
func queryCreateEntry(ctx context.Context, db executor, e *model.Entry, now time.Time) error {
	if err := store.PrepareCreate(e, now); err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO NOTHING`,
		e.ID, e.Key, string(e.Type), e.Content, e.Title, e.Section, e.Subsection,
		metadataArg(e.Metadata), e.IsPublished, e.Order, e.Revision,
		e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return classify("create entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Unavailable("rows affected", err)
	}
	if n == 0 {
		return store.ErrDuplicateKey
	}
	return nil
}

func queryReplaceEntry(ctx context.Context, db executor, e *model.Entry, expectedRevision int64, now time.Time) error {
	var created, updated int64
	err := db.QueryRowContext(ctx, `
		UPDATE entries SET
			type = ?, content = ?, title = ?, section = ?, subsection = ?,
			metadata = ?, is_published = ?, sort_order = ?,
			revision = revision + 1,
			updated_at = MAX(?, created_at)
		WHERE key = ? AND (? = 0 OR revision = ?)
		RETURNING id, revision, created_at, updated_at`,
		string(e.Type), e.Content, e.Title, e.Section, e.Subsection,
		metadataArg(e.Metadata), e.IsPublished, e.Order,
		now.UnixNano(),
		e.Key, expectedRevision, expectedRevision,
	).Scan(&e.ID, &e.Revision, &created, &updated)
	if err == nil {
		e.CreatedAt = time.Unix(0, created).UTC()
		e.UpdatedAt = time.Unix(0, updated).UTC()
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return classify("replace entry", err)
	}
	if expectedRevision == 0 {
		return store.ErrNotFound
	}

	var actual int64
	if err := db.QueryRowContext(ctx, `SELECT revision FROM entries WHERE key = ?`, e.Key).Scan(&actual); err != nil {
		return classify("replace entry", err)
	}
	return store.CheckRevision(expectedRevision, actual)
}

func queryDeleteEntry(ctx context.Context, db executor, idOrKey string) error {
	for _, q := range []string{
		`DELETE FROM entries WHERE key = ?`,
		`DELETE FROM entries WHERE id = ?`,
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

var sortColumns = map[string]string{
	store.SortOrder:     "sort_order",
	store.SortKey:       "key",
	store.SortTitle:     "title",
	store.SortCreatedAt: "created_at",
	store.SortUpdatedAt: "updated_at",
}

func orderBy(sort string) string {
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

func queryListEntries(ctx context.Context, db executor, filter model.EntryFilter) ([]*model.Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Section != "" {
		where = append(where, "section = ?")
		args = append(args, filter.Section)
	}
	if filter.Subsection != "" {
		where = append(where, "subsection = ?")
		args = append(args, filter.Subsection)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}

	q := `SELECT ` + entryColumns + ` FROM entries`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(filter.Sort)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify("list entries", err)
	}
	defer rows.Close()

	entries := []*model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, classify("list entries", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list entries", err)
	}
	return entries, nil
}
