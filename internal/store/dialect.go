package store

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/sijms/go-ora/v2/network"
)

// Supported dialects.
const (
	DialectSQLite    = "sqlite"
	DialectPostgres  = "postgres"
	DialectMySQL     = "mysql"
	DialectSQLServer = "sqlserver"
	DialectOracle    = "oracle"
)

// Dialects lists every dialect this build can open.
var Dialects = []string{DialectSQLite, DialectPostgres, DialectMySQL, DialectSQLServer, DialectOracle}

func init() {
	// go-ora registers as "oracle", which sqlx does not know; it takes
	// :name placeholders bound by position.
	sqlx.BindDriver("oracle", sqlx.NAMED)
}

// sqlDriverName maps a dialect to the database/sql driver it registers.
func sqlDriverName(dialect string) string {
	switch dialect {
	case DialectPostgres:
		return "pgx"
	case DialectMySQL:
		return "mysql"
	case DialectSQLServer:
		return "sqlserver"
	case DialectOracle:
		return "oracle"
	default:
		return "sqlite"
	}
}

// ParseURL splits a database URL into a dialect and the DSN understood by that
// dialect's driver:
//
//	postgres://u:p@host/db, postgresql://...  -> postgres, unchanged
//	mysql://u:p@tcp(host:3306)/db             -> mysql, "u:p@tcp(host:3306)/db"
//	sqlserver://u:p@host:1433?database=db     -> sqlserver, unchanged
//	oracle://u:p@host:1521/service            -> oracle, unchanged
//	sqlite:///var/lib/keywarden/keys.db       -> sqlite, "/var/lib/keywarden/keys.db"
//	./keys.db, :memory:, ""                   -> sqlite, unchanged
func ParseURL(raw string) (dialect, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		if _, err := url.Parse(raw); err != nil {
			return "", "", fmt.Errorf("invalid postgres url: %w", err)
		}
		return DialectPostgres, raw, nil
	case strings.HasPrefix(raw, "mysql://"):
		dsn := strings.TrimPrefix(raw, "mysql://")
		cfg, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return "", "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return DialectMySQL, cfg.FormatDSN(), nil
	case strings.HasPrefix(raw, "sqlserver://"):
		if err := requireHost(raw); err != nil {
			return "", "", fmt.Errorf("invalid sqlserver url: %w", err)
		}
		return DialectSQLServer, raw, nil
	case strings.HasPrefix(raw, "oracle://"):
		if err := requireHost(raw); err != nil {
			return "", "", fmt.Errorf("invalid oracle url: %w", err)
		}
		return DialectOracle, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(raw, "sqlite://"), nil
	case strings.Contains(raw, "://"):
		return "", "", fmt.Errorf("unsupported database url scheme: %s", raw[:strings.Index(raw, "://")])
	default:
		return DialectSQLite, raw, nil
	}
}

func requireHost(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint violation in
// any of the supported dialects.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		// 2627: unique constraint, 2601: unique index.
		return msErr.Number == 2627 || msErr.Number == 2601
	}
	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return oraErr.ErrCode == 1
	}
	msg := strings.ToLower(err.Error())
	// modernc.org/sqlite reports constraint failures only through the message.
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "ora-00001")
}

// insertQuery builds an INSERT for table that hands back the generated id.
// returning reports whether the id comes back as a result row rather than
// through LastInsertId or an out bind.
func insertQuery(dialect, table string, cols []string) (q string, returning bool) {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	colList := strings.Join(cols, ", ")
	switch dialect {
	case DialectPostgres:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", table, colList, marks), true
	case DialectSQLServer:
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.id VALUES (%s)", table, colList, marks), true
	case DialectOracle:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id INTO ?", table, colList, marks), false
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, colList, marks), false
	}
}

// pageClause returns the pagination suffix for an ordered query and its
// arguments in placeholder order.
func pageClause(dialect string, limit, offset int) (string, []interface{}) {
	switch dialect {
	case DialectSQLServer, DialectOracle:
		return " OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", []interface{}{offset, limit}
	default:
		return " LIMIT ? OFFSET ?", []interface{}{limit, offset}
	}
}
