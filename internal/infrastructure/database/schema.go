package database

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	pgx "github.com/jackc/pgx/v5"

	"bookcatalog/pkg/logger"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// schemaLockKey serialises concurrent `schema apply` runs across processes.
const schemaLockKey int64 = 0x626f6f6b636174

// Migration là một file SQL trong schema/, version lấy từ prefix "NNN_"
type Migration struct {
	Version  int    `json:"version"`
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
	SQL      string `json:"-"`
}

// AppliedMigration là một row trong bảng schema_version
type AppliedMigration struct {
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	AppliedAt time.Time `json:"applied_at"`
}

// SchemaStatus so sánh file embedded với những gì đã apply.
// Drifted là file đã apply nhưng nội dung đã đổi; ApplySchema từ chối chạy lại
// chúng vì CREATE ... IF NOT EXISTS không sửa object đã có.
type SchemaStatus struct {
	Applied []AppliedMigration `json:"applied"`
	Pending []Migration        `json:"pending"`
	Drifted []Migration        `json:"drifted"`
	PgTrgm  bool               `json:"pg_trgm"`
}

// UpToDate reports whether every embedded file is applied with its current checksum.
func (s *SchemaStatus) UpToDate() bool {
	return len(s.Pending) == 0 && len(s.Drifted) == 0
}

// ErrSchemaDrift - file đã apply bị sửa; thay đổi phải nằm trong file mới
var ErrSchemaDrift = errors.New("applied schema file changed; add a new numbered file instead")

// ErrSchemaNotApplied - database chưa có pg_trgm / bảng catalog
var ErrSchemaNotApplied = errors.New("catalog schema is not applied, run `catalogctl schema apply`")

// RequiredExtension là extension mà search và lookup cần
const RequiredExtension = "pg_trgm"

const createSchemaVersionSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    integer PRIMARY KEY,
    name       text        NOT NULL,
    checksum   text        NOT NULL,
    applied_at timestamptz NOT NULL DEFAULT now()
)`

// LoadMigrations đọc và sort các file SQL embedded theo version
func LoadMigrations() ([]Migration, error) {
	return loadMigrations(schemaFS, "schema")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[int]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}

		version, err := parseVersion(e.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate schema version %d: %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		sum := sha256.Sum256(body)
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     e.Name(),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(body),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseVersion: "004_indexes.sql" -> 4
func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("schema file %q has no version prefix", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("schema file %q has invalid version prefix", name)
	}
	return v, nil
}

// ApplySchema chạy các file chưa apply trong một transaction duy nhất.
// File đã apply mà đổi checksum thì trả về ErrSchemaDrift và không ghi gì.
func (db *PostgresDB) ApplySchema(ctx context.Context) ([]Migration, error) {
	migrations, err := LoadMigrations()
	if err != nil {
		return nil, err
	}

	var applied []Migration
	err = db.ExecuteInTransaction(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		applied, err = applyMigrations(ctx, tx, migrations)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("[SCHEMA] Schema applied", map[string]interface{}{
		"applied": len(applied),
		"total":   len(migrations),
	})
	return applied, nil
}

func applyMigrations(ctx context.Context, tx pgx.Tx, migrations []Migration) ([]Migration, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return nil, fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.Exec(ctx, createSchemaVersionSQL); err != nil {
		return nil, fmt.Errorf("create schema_version: %w", err)
	}

	current, err := readApplied(ctx, tx)
	if err != nil {
		return nil, err
	}

	var applied []Migration
	for _, m := range migrations {
		if prev, ok := current[m.Version]; ok {
			if prev.Checksum != m.Checksum {
				return nil, fmt.Errorf("%s: %w", m.Name, ErrSchemaDrift)
			}
			continue
		}

		logger.Debug("[SCHEMA] Applying", map[string]interface{}{"file": m.Name})
		// Không truyền args để pgx dùng simple protocol (nhiều statement/file)
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO schema_version (version, name, checksum, applied_at)
			VALUES ($1, $2, $3, now())`,
			m.Version, m.Name, m.Checksum,
		)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", m.Name, err)
		}
		applied = append(applied, m)
	}

	return applied, nil
}

func readApplied(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}) (map[int]AppliedMigration, error) {
	rows, err := q.Query(ctx, `SELECT version, name, checksum, applied_at FROM schema_version ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	defer rows.Close()

	out := make(map[int]AppliedMigration)
	for rows.Next() {
		var a AppliedMigration
		if err := rows.Scan(&a.Version, &a.Name, &a.Checksum, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan schema_version: %w", err)
		}
		out[a.Version] = a
	}
	return out, rows.Err()
}

// SchemaStatus trả về danh sách applied và pending
func (db *PostgresDB) SchemaStatus(ctx context.Context) (*SchemaStatus, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	migrations, err := LoadMigrations()
	if err != nil {
		return nil, err
	}

	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT to_regclass('schema_version') IS NOT NULL`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check schema_version: %w", err)
	}

	current := map[int]AppliedMigration{}
	if exists {
		if current, err = readApplied(ctx, db.Pool); err != nil {
			return nil, err
		}
	}

	status := diffStatus(migrations, current)
	if status.PgTrgm, err = db.HasExtension(ctx, RequiredExtension); err != nil {
		return nil, err
	}
	return status, nil
}

// HasExtension reports whether the named extension is installed in the database.
func (db *PostgresDB) HasExtension(ctx context.Context, name string) (bool, error) {
	if db.Pool == nil {
		return false, fmt.Errorf("database pool is not initialized")
	}

	var ok bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = $1)`, name,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("extension lookup failed: %w", err)
	}
	return ok, nil
}

// RequireSchema kiểm tra database đã được `schema apply`: pg_trgm có mặt và
// không còn file pending. Các lệnh đọc/ghi dữ liệu gọi hàm này; `schema
// apply` thì không.
func (db *PostgresDB) RequireSchema(ctx context.Context) error {
	status, err := db.SchemaStatus(ctx)
	if err != nil {
		return err
	}
	return status.Check()
}

// Check trả về ErrSchemaNotApplied khi thiếu pg_trgm hoặc còn file pending,
// ErrSchemaDrift khi có file đã apply bị sửa.
func (s *SchemaStatus) Check() error {
	if !s.PgTrgm || len(s.Pending) > 0 {
		return ErrSchemaNotApplied
	}
	if len(s.Drifted) > 0 {
		return fmt.Errorf("%s: %w", s.Drifted[0].Name, ErrSchemaDrift)
	}
	return nil
}

func diffStatus(migrations []Migration, current map[int]AppliedMigration) *SchemaStatus {
	status := &SchemaStatus{Applied: []AppliedMigration{}, Pending: []Migration{}, Drifted: []Migration{}}
	for _, m := range migrations {
		a, ok := current[m.Version]
		switch {
		case !ok:
			status.Pending = append(status.Pending, m)
		case a.Checksum != m.Checksum:
			status.Applied = append(status.Applied, a)
			status.Drifted = append(status.Drifted, m)
		default:
			status.Applied = append(status.Applied, a)
		}
	}
	return status
}
