package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"helpdesk/internal/database/migrations"
	"helpdesk/internal/helpdesk"
	"helpdesk/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Ticket statuses counted by TicketCounts.
const (
	statusOpen   = "Aberto"
	statusClosed = "Finalizado"

	latestTicketsLimit = 5
	unknownCustomer    = "unknown customer"
)

// SQLiteDatabase implements helpdesk.Database on a single SQLite file.
type SQLiteDatabase struct {
	db   *sqlx.DB
	path string
}

// NewSQLiteDatabase opens the database at path. path can be a file path or
// ":memory:". The schema is not touched; call Migrate for that.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection. path is reported by
// Path and used for DatabaseStats.
func NewSQLiteDatabaseFromDB(db *sqlx.DB, path string) *SQLiteDatabase {
	return &SQLiteDatabase{db: db, path: path}
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer, and ":memory:" databases
	// are private to the connection that created them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations, then adds columns that older
// database files may lack.
func (s *SQLiteDatabase) Migrate(ctx context.Context) error {
	if err := migrations.MigrateUp(s.db.DB); err != nil {
		return err
	}
	if _, err := s.EnsureColumns(ctx); err != nil {
		return err
	}
	return nil
}

// CheckMigrations returns nil when the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckUpToDate(s.db.DB)
}

type requiredColumn struct {
	relation string
	column   string
	decl     string
}

var requiredColumns = []requiredColumn{
	{"clientes", "notas", "TEXT"},
	{"chamados_andamentos", "usuario_id", "INTEGER REFERENCES usuarios(id) ON DELETE SET NULL"},
	{"usuarios", "senha_inicial_definida", "BOOLEAN DEFAULT TRUE"},
}

// EnsureColumns adds any missing required column to an existing relation
// and returns the added columns as "relation.column". Relations that do not
// exist are skipped. Running it twice is a no-op.
func (s *SQLiteDatabase) EnsureColumns(ctx context.Context) ([]string, error) {
	relations, err := s.ListRelations(ctx)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, rc := range requiredColumns {
		if !slices.Contains(relations, rc.relation) {
			continue
		}
		cols, err := s.RelationColumns(ctx, rc.relation)
		if err != nil {
			return added, err
		}
		if slices.ContainsFunc(cols, func(c model.Column) bool { return c.Name == rc.column }) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", rc.relation, rc.column, rc.decl)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return added, fmt.Errorf("adding column %s.%s: %w", rc.relation, rc.column, err)
		}
		added = append(added, rc.relation+"."+rc.column)
	}
	return added, nil
}

// User operations

const userColumns = "id, username, password, role, created_at, COALESCE(senha_inicial_definida, 0) AS senha_inicial_definida"

func (s *SQLiteDatabase) findUser(ctx context.Context, where sq.Eq) (*model.User, error) {
	query, args, err := sq.Select(userColumns).From("usuarios").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user query: %w", err)
	}
	var u model.User
	if err := s.db.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteDatabase) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.findUser(ctx, sq.Eq{"id": id})
	if err != nil {
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return u, nil
}

func (s *SQLiteDatabase) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := s.findUser(ctx, sq.Eq{"username": username})
	if err != nil {
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	return u, nil
}

func (s *SQLiteDatabase) SetUserPassword(ctx context.Context, id int64, hash string) error {
	query, args, err := sq.Update("usuarios").
		Set("password", hash).
		Set("senha_inicial_definida", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building password update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n == 0 {
		return helpdesk.ErrUserNotFound
	}
	return nil
}

// CreateUser inserts a user with the given role and no password.
func (s *SQLiteDatabase) CreateUser(ctx context.Context, username, role string) (int64, error) {
	query, args, err := sq.Insert("usuarios").
		Columns("username", "role", "senha_inicial_definida").
		Values(username, role, false).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building user insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("creating user: %w", err)
	}
	return res.LastInsertId()
}

// DeleteUser removes a user by id.
func (s *SQLiteDatabase) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM usuarios WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// Schema catalog

func (s *SQLiteDatabase) ListRelations(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}
	return names, nil
}

func (s *SQLiteDatabase) RelationColumns(ctx context.Context, relation string) ([]model.Column, error) {
	var cols []model.Column
	err := s.db.SelectContext(ctx, &cols,
		"SELECT name, type FROM pragma_table_info(?) ORDER BY cid", relation)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", relation, err)
	}
	return cols, nil
}

// Settings

func (s *SQLiteDatabase) GetSetting(ctx context.Context, key string) (string, bool, error) {
	query, args, err := sq.Select("valor").From("configuracoes").Where(sq.Eq{"chave": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("building setting query: %w", err)
	}
	var value string
	if err := s.db.GetContext(ctx, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteDatabase) SetSetting(ctx context.Context, key, value, description string) error {
	query, args, err := sq.Insert("configuracoes").
		Columns("chave", "valor", "descricao", "data_modificacao").
		Values(key, value, description, sq.Expr("CURRENT_TIMESTAMP")).
		Suffix("ON CONFLICT(chave) DO UPDATE SET valor = excluded.valor, data_modificacao = CURRENT_TIMESTAMP").
		ToSql()
	if err != nil {
		return fmt.Errorf("building setting upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// Statistics

func (s *SQLiteDatabase) TicketCounts(ctx context.Context, r model.DateRange) (*model.TicketCounts, error) {
	period := sq.And{}
	if r.From != "" {
		period = append(period, sq.Expr("date(data_abertura) >= ?", r.From))
	}
	if r.To != "" {
		period = append(period, sq.Expr("date(data_abertura) <= ?", r.To))
	}

	counts := &model.TicketCounts{}
	queries := []struct {
		dest  *int64
		query sq.SelectBuilder
	}{
		{&counts.Customers, sq.Select("COUNT(*)").From("clientes")},
		{&counts.Open, sq.Select("COUNT(*)").From("chamados").Where(period).Where(sq.Eq{"status": statusOpen})},
		{&counts.Closed, sq.Select("COUNT(*)").From("chamados").Where(period).Where(sq.Eq{"status": statusClosed})},
		{&counts.Total, sq.Select("COUNT(*)").From("chamados").Where(period)},
	}
	for _, q := range queries {
		query, args, err := q.query.ToSql()
		if err != nil {
			return nil, fmt.Errorf("building count query: %w", err)
		}
		if err := s.db.GetContext(ctx, q.dest, query, args...); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	query, args, err := sq.Select(
		"COALESCE(MIN(date(data_abertura)), '')",
		"COALESCE(MAX(date(data_abertura)), '')",
	).From("chamados").Where(period).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building date span query: %w", err)
	}
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&counts.FirstOpened, &counts.LastOpened); err != nil {
		return nil, fmt.Errorf("reading date span: %w", err)
	}

	query, args, err = sq.Select(
		"c.id",
		"COALESCE(c.assunto, '') AS assunto",
		"c.data_abertura",
		"COALESCE(c.status, '') AS status",
		fmt.Sprintf("COALESCE(cl.nome, '%s') AS cliente_nome", unknownCustomer),
	).
		From("chamados c").
		LeftJoin("clientes cl ON c.cliente_id = cl.id").
		OrderBy("c.data_abertura DESC").
		Limit(latestTicketsLimit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building latest tickets query: %w", err)
	}
	if err := s.db.SelectContext(ctx, &counts.Latest, query, args...); err != nil {
		return nil, fmt.Errorf("reading latest tickets: %w", err)
	}
	return counts, nil
}

// Administration

func (s *SQLiteDatabase) DatabaseStats(ctx context.Context) (*model.DatabaseStats, error) {
	tables, err := s.ListRelations(ctx)
	if err != nil {
		return nil, err
	}
	stats := &model.DatabaseStats{Tables: tables}
	if s.path != "" && s.path != ":memory:" {
		info, err := os.Stat(s.path)
		if err != nil {
			return nil, fmt.Errorf("stat database file: %w", err)
		}
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// Path returns the database file path.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, for tests and tools.
func (s *SQLiteDatabase) DB() *sqlx.DB {
	return s.db
}
