package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	for _, m := range migrationsFor(s.dialect) {
		if _, err := s.db.Exec(m); err != nil {
			if alreadyExists(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// alreadyExists reports a DDL failure on an object that is already there.
// MySQL and Oracle have no IF NOT EXISTS for these statements, so reopening
// an existing database hits these errors.
func alreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key name") || // MySQL index
		strings.Contains(msg, "ora-00955") // Oracle table or index
}

func migrationsFor(dialect string) []string {
	switch dialect {
	case DialectPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS api_keys (
				id BIGSERIAL PRIMARY KEY,
				hashed_api_key TEXT NOT NULL UNIQUE,
				is_admin BOOLEAN NOT NULL DEFAULT FALSE,
				notes TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS request_logs (
				id BIGSERIAL PRIMARY KEY,
				api_key_id BIGINT,
				endpoint TEXT NOT NULL,
				method TEXT NOT NULL,
				status_code INTEGER NOT NULL,
				ip_address TEXT NOT NULL DEFAULT '',
				timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_request_logs_api_key_id ON request_logs(api_key_id)`,
		}
	case DialectMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS api_keys (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				hashed_api_key VARCHAR(255) NOT NULL UNIQUE,
				is_admin BOOLEAN NOT NULL DEFAULT FALSE,
				notes TEXT NOT NULL,
				created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
			)`,
			`CREATE TABLE IF NOT EXISTS request_logs (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				api_key_id BIGINT NULL,
				endpoint VARCHAR(2048) NOT NULL,
				method VARCHAR(16) NOT NULL,
				status_code INT NOT NULL,
				ip_address VARCHAR(64) NOT NULL DEFAULT '',
				timestamp DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
			)`,
			`CREATE INDEX idx_request_logs_api_key_id ON request_logs(api_key_id)`,
		}
	case DialectSQLServer:
		return []string{
			`IF OBJECT_ID(N'api_keys', N'U') IS NULL
			CREATE TABLE api_keys (
				id BIGINT IDENTITY(1,1) PRIMARY KEY,
				hashed_api_key NVARCHAR(255) NOT NULL UNIQUE,
				is_admin BIT NOT NULL DEFAULT 0,
				notes NVARCHAR(MAX) NOT NULL DEFAULT '',
				created_at DATETIME2(6) NOT NULL DEFAULT SYSUTCDATETIME()
			)`,
			`IF OBJECT_ID(N'request_logs', N'U') IS NULL
			CREATE TABLE request_logs (
				id BIGINT IDENTITY(1,1) PRIMARY KEY,
				api_key_id BIGINT NULL,
				endpoint NVARCHAR(2048) NOT NULL,
				method NVARCHAR(16) NOT NULL,
				status_code INT NOT NULL,
				ip_address NVARCHAR(64) NOT NULL DEFAULT '',
				[timestamp] DATETIME2(6) NOT NULL DEFAULT SYSUTCDATETIME()
			)`,
			`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'idx_request_logs_api_key_id')
			CREATE INDEX idx_request_logs_api_key_id ON request_logs(api_key_id)`,
		}
	case DialectOracle:
		// Identity columns never hand out an id twice. notes and ip_address
		// stay nullable because Oracle stores '' as NULL.
		return []string{
			`CREATE TABLE api_keys (
				id NUMBER(19) GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
				hashed_api_key VARCHAR2(255) NOT NULL UNIQUE,
				is_admin NUMBER(1) DEFAULT 0 NOT NULL,
				notes VARCHAR2(4000),
				created_at TIMESTAMP WITH TIME ZONE DEFAULT SYSTIMESTAMP NOT NULL
			)`,
			`CREATE TABLE request_logs (
				id NUMBER(19) GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
				api_key_id NUMBER(19),
				endpoint VARCHAR2(2048) NOT NULL,
				method VARCHAR2(16) NOT NULL,
				status_code NUMBER(5) NOT NULL,
				ip_address VARCHAR2(64),
				timestamp TIMESTAMP WITH TIME ZONE DEFAULT SYSTIMESTAMP NOT NULL
			)`,
			`CREATE INDEX idx_request_logs_api_key_id ON request_logs(api_key_id)`,
		}
	default:
		// AUTOINCREMENT guarantees ids of deleted credentials are never reused,
		// so dangling audit references stay unambiguous.
		return []string{
			`CREATE TABLE IF NOT EXISTS api_keys (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				hashed_api_key TEXT UNIQUE NOT NULL,
				is_admin INTEGER NOT NULL DEFAULT 0,
				notes TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS request_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				api_key_id INTEGER,
				endpoint TEXT NOT NULL,
				method TEXT NOT NULL,
				status_code INTEGER NOT NULL,
				ip_address TEXT NOT NULL DEFAULT '',
				timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_request_logs_api_key_id ON request_logs(api_key_id)`,
		}
	}
}
