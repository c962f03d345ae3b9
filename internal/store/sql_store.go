package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

const interactionColumns = `id, transcript, customer_name, phone, address, city, locality, summary, raw_json, audio_key, created_at, updated_at`

// SQLStore persists interactions in Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ListInteractions returns all interactions, newest first.
func (s *SQLStore) ListInteractions(ctx context.Context) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+interactionColumns+` FROM interactions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanInteractions(rows)
}

func (s *SQLStore) GetInteraction(ctx context.Context, id int64) (Interaction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+interactionColumns+` FROM interactions WHERE id=?`), id)
	return s.scanInteraction(row)
}

// InsertInteraction stores a new interaction and returns its generated id.
func (s *SQLStore) InsertInteraction(ctx context.Context, in Interaction) (int64, error) {
	now := time.Now().UTC()
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	rawJSON := in.RawJSON
	if rawJSON == "" {
		rawJSON = "{}"
	}

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO interactions (transcript, customer_name, phone, address, city, locality, summary, raw_json, audio_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`),
		in.Transcript, in.CustomerName, in.Phone, in.Address, in.City, in.Locality, in.Summary,
		rawJSON, in.AudioKey, s.timeArg(createdAt), s.timeArg(now),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateInteraction overwrites the editable columns. It returns sql.ErrNoRows
// when the interaction does not exist.
func (s *SQLStore) UpdateInteraction(ctx context.Context, in Interaction) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE interactions
		SET transcript=?, customer_name=?, phone=?, address=?, city=?, locality=?, summary=?, raw_json=?, updated_at=?
		WHERE id=?
	`),
		in.Transcript, in.CustomerName, in.Phone, in.Address, in.City, in.Locality, in.Summary,
		in.RawJSON, s.timeArg(time.Now().UTC()), in.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *SQLStore) DeleteInteraction(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM interactions WHERE id=?`), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// SearchInteractions is a case-insensitive substring match over the text
// columns, newest first.
func (s *SQLStore) SearchInteractions(ctx context.Context, query string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	columns := []string{"transcript", "customer_name", "phone", "city", "locality", "summary"}
	clauses := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns)+1)
	for _, column := range columns {
		clauses = append(clauses, fmt.Sprintf(`LOWER(COALESCE(%s, '')) LIKE ? ESCAPE '\'`, column))
		args = append(args, pattern)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+interactionColumns+` FROM interactions WHERE `+
		strings.Join(clauses, " OR ")+` ORDER BY created_at DESC, id DESC LIMIT ?`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanInteractions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanInteractions(rows *sql.Rows) ([]Interaction, error) {
	out := make([]Interaction, 0)
	for rows.Next() {
		item, err := s.scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLStore) scanInteraction(row rowScanner) (Interaction, error) {
	var (
		item                 Interaction
		customerName, phone  sql.NullString
		address, city        sql.NullString
		locality, summary    sql.NullString
		audioKey             sql.NullString
		createdAt, updatedAt any
	)
	if err := row.Scan(&item.ID, &item.Transcript, &customerName, &phone, &address, &city, &locality,
		&summary, &item.RawJSON, &audioKey, &createdAt, &updatedAt); err != nil {
		return Interaction{}, err
	}
	item.CustomerName = nullable(customerName)
	item.Phone = nullable(phone)
	item.Address = nullable(address)
	item.City = nullable(city)
	item.Locality = nullable(locality)
	item.Summary = nullable(summary)
	item.AudioKey = nullable(audioKey)

	var err error
	if item.CreatedAt, err = scanTime(createdAt); err != nil {
		return Interaction{}, fmt.Errorf("scan created_at: %w", err)
	}
	if item.UpdatedAt, err = scanTime(updatedAt); err != nil {
		return Interaction{}, fmt.Errorf("scan updated_at: %w", err)
	}
	return item, nil
}

func (s *SQLStore) rebind(query string) string {
	return rebind(s.dialect, query)
}

// timeArg binds timestamps as fixed-width UTC text on SQLite so that
// ORDER BY created_at sorts chronologically.
func (s *SQLStore) timeArg(t time.Time) any {
	if s.dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func scanTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", value)
	}
}

func parseTime(value string) (time.Time, error) {
	layouts := []string{sqliteTimeLayout, "2006-01-02 15:04:05", time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}

func nullable(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
