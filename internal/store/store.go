// Package store persists credentials and the request audit trail in a
// relational database reached through sqlx.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite"

	"github.com/keywarden/keywarden/internal/model"
)

// Options controls the connection pool. Zero values keep the driver defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store manages credentials and audit entries. Uniqueness of hashed secrets is
// enforced by the database, never by an in-process check.
type Store struct {
	db      *sqlx.DB
	dialect string
}

// Open connects to the database described by databaseURL (see ParseURL) and
// runs migrations. An empty URL opens a private in-memory SQLite database.
func Open(databaseURL string, opts Options) (*Store, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		dsn, err = sqliteDSN(dsn)
		if err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Connect(sqlDriverName(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if dialect == DialectOracle {
		// Oracle reports unquoted column names in upper case.
		db.Mapper = reflectx.NewMapperTagFunc("db", strings.ToUpper, strings.ToUpper)
	}

	if dialect == DialectSQLite {
		// SQLite doesn't support concurrent writes, and an in-memory database
		// lives only as long as its single connection.
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" || path == ":memory:" {
		return ":memory:", nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() string {
	return s.dialect
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// insert adds one row to table and returns the generated id.
func (s *Store) insert(ctx context.Context, table string, cols []string, args ...interface{}) (int64, error) {
	q, returning := insertQuery(s.dialect, table, cols)
	q = s.db.Rebind(q)

	var id int64
	switch {
	case returning:
		err := s.db.QueryRowxContext(ctx, q, args...).Scan(&id)
		return id, err
	case s.dialect == DialectOracle:
		_, err := s.db.ExecContext(ctx, q, append(args, sql.Out{Dest: &id})...)
		return id, err
	}
	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// boolArg binds b for a comparison against is_admin. Oracle stores it as
// NUMBER(1).
func (s *Store) boolArg(b bool) interface{} {
	if s.dialect != DialectOracle {
		return b
	}
	if b {
		return 1
	}
	return 0
}

// Oracle reads an empty string back as NULL, so text columns that may be
// empty scan through NullString.
type credentialRow struct {
	ID           int64          `db:"id"`
	HashedSecret string         `db:"hashed_api_key"`
	IsAdmin      bool           `db:"is_admin"`
	Notes        sql.NullString `db:"notes"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r credentialRow) credential() model.Credential {
	return model.Credential{
		ID:           r.ID,
		HashedSecret: r.HashedSecret,
		IsAdmin:      r.IsAdmin,
		Notes:        r.Notes.String,
		CreatedAt:    r.CreatedAt,
	}
}

type auditRow struct {
	ID            int64          `db:"id"`
	CredentialID  *int64         `db:"api_key_id"`
	Endpoint      string         `db:"endpoint"`
	Method        string         `db:"method"`
	StatusCode    int            `db:"status_code"`
	SourceAddress sql.NullString `db:"ip_address"`
	Timestamp     time.Time      `db:"timestamp"`
}

func (r auditRow) entry() model.AuditEntry {
	return model.AuditEntry{
		ID:            r.ID,
		CredentialID:  r.CredentialID,
		Endpoint:      r.Endpoint,
		Method:        r.Method,
		StatusCode:    r.StatusCode,
		SourceAddress: r.SourceAddress.String,
		Timestamp:     r.Timestamp,
	}
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// CreateCredential inserts a new credential. HashedSecret must already be set.
// The ID and CreatedAt fields are populated after a successful insert. A hash
// that already exists yields ErrDuplicateHash and leaves no row behind.
func (s *Store) CreateCredential(ctx context.Context, cred *model.Credential) error {
	cred.CreatedAt = now()

	id, err := s.insert(ctx, "api_keys",
		[]string{"hashed_api_key", "is_admin", "notes", "created_at"},
		cred.HashedSecret, s.boolArg(cred.IsAdmin), cred.Notes, cred.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateHash
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	cred.ID = id
	return nil
}

const credentialColumns = "id, hashed_api_key, is_admin, notes, created_at"

// GetCredential returns a credential by ID.
func (s *Store) GetCredential(ctx context.Context, id int64) (*model.Credential, error) {
	var row credentialRow
	q := s.db.Rebind("SELECT " + credentialColumns + " FROM api_keys WHERE id = ?")
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	cred := row.credential()
	return &cred, nil
}

// ListCredentials returns every stored credential in id order.
func (s *Store) ListCredentials(ctx context.Context) ([]model.Credential, error) {
	var rows []credentialRow
	const q = "SELECT " + credentialColumns + " FROM api_keys ORDER BY id"
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	creds := make([]model.Credential, len(rows))
	for i, r := range rows {
		creds[i] = r.credential()
	}
	return creds, nil
}

// DeleteCredential permanently removes a credential. Audit entries that
// reference it are left untouched.
func (s *Store) DeleteCredential(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM api_keys WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAdmins returns the number of admin credentials. Used to detect a store
// that still needs bootstrapping.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	q := s.db.Rebind("SELECT COUNT(*) FROM api_keys WHERE is_admin = ?")
	if err := s.db.GetContext(ctx, &count, q, s.boolArg(true)); err != nil {
		return 0, fmt.Errorf("count admin keys: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Audit trail
// ---------------------------------------------------------------------------

// CreateAuditEntry appends an audit entry. The ID is populated after insert;
// a zero Timestamp is replaced with the current time.
func (s *Store) CreateAuditEntry(ctx context.Context, entry *model.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now()
	}

	id, err := s.insert(ctx, "request_logs",
		[]string{"api_key_id", "endpoint", "method", "status_code", "ip_address", "timestamp"},
		entry.CredentialID, entry.Endpoint, entry.Method, entry.StatusCode, entry.SourceAddress, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	entry.ID = id
	return nil
}

func auditWhere(f model.AuditFilter) (string, []interface{}) {
	if f.CredentialID == nil {
		return "", nil
	}
	return " WHERE api_key_id = ?", []interface{}{*f.CredentialID}
}

// ListAuditEntries returns audit entries newest first. Limit <= 0 returns
// every matching entry and ignores Offset.
func (s *Store) ListAuditEntries(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	where, args := auditWhere(f)
	q := `SELECT id, api_key_id, endpoint, method, status_code, ip_address, timestamp
		FROM request_logs` + where + ` ORDER BY id DESC`
	if f.Limit > 0 {
		page, pageArgs := pageClause(s.dialect, f.Limit, f.Offset)
		q += page
		args = append(args, pageArgs...)
	}

	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	entries := make([]model.AuditEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry()
	}
	return entries, nil
}

// CountAuditEntries returns the number of audit entries matching f, ignoring
// its pagination fields.
func (s *Store) CountAuditEntries(ctx context.Context, f model.AuditFilter) (int64, error) {
	where, args := auditWhere(f)
	var count int64
	if err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM request_logs"+where), args...); err != nil {
		return 0, fmt.Errorf("count request logs: %w", err)
	}
	return count, nil
}
