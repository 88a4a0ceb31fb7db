package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("entity-binder/postgres")

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "diwise"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, err
}

// Database is the subset of a pgx connection pool used by a RecordTable
type Database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecordTable stores the records of a mapper in a table with one text column
// per field. A NULL column is an absent field.
type RecordTable struct {
	db      Database
	table   string
	columns []string
	idIndex int

	selectSQL string
	getSQL    string
	upsertSQL string
}

func NewRecordTable(table, idColumn string, columns []string) (*RecordTable, error) {
	if table == "" {
		return nil, fmt.Errorf("a table name is required")
	}

	idIndex := -1
	for idx, col := range columns {
		if col == idColumn {
			idIndex = idx
		}
	}

	if idIndex < 0 {
		return nil, fmt.Errorf("id column %s is not one of the columns of table %s", idColumn, table)
	}

	rt := &RecordTable{
		table:   table,
		columns: columns,
		idIndex: idIndex,
	}

	rt.selectSQL = fmt.Sprintf("SELECT %s FROM %s", rt.selectList(), identifier(table))
	rt.getSQL = fmt.Sprintf("%s WHERE %s = $1", rt.selectSQL, identifier(idColumn))
	rt.selectSQL += fmt.Sprintf(" ORDER BY %s", identifier(idColumn))
	rt.upsertSQL = rt.upsert()

	return rt, nil
}

// Initialize creates the table if it does not exist and adds any missing columns
func (rt *RecordTable) Initialize(ctx context.Context, db Database) error {
	rt.db = db

	_, err := db.Exec(ctx, rt.createTable())
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", rt.table, err)
	}

	for _, col := range rt.columns {
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT", identifier(rt.table), identifier(col))
		_, err = db.Exec(ctx, sql)
		if err != nil {
			return fmt.Errorf("failed to add column %s to table %s: %w", col, rt.table, err)
		}
	}

	logging.GetFromContext(ctx).Debug("record table initialized", "table", rt.table, "columns", len(rt.columns))

	return nil
}

func (rt *RecordTable) Get(ctx context.Context, id string) (map[string]string, bool, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-record",
		trace.WithAttributes(attribute.String("table", rt.table), attribute.String("entity-id", id)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	values := rt.scanTargets()

	err = rt.db.QueryRow(ctx, rt.getSQL, id).Scan(values...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
			return nil, false, nil
		}
		return nil, false, err
	}

	return rt.record(values), true, nil
}

func (rt *RecordTable) Save(ctx context.Context, id string, record map[string]string) error {
	var err error

	ctx, span := tracer.Start(ctx, "save-record",
		trace.WithAttributes(attribute.String("table", rt.table), attribute.String("entity-id", id)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, err = rt.db.Exec(ctx, rt.upsertSQL, rt.arguments(id, record)...)

	return err
}

func (rt *RecordTable) List(ctx context.Context) ([]map[string]string, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-records",
		trace.WithAttributes(attribute.String("table", rt.table)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	rows, err := rt.db.Query(ctx, rt.selectSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]map[string]string, 0)

	for rows.Next() {
		values := rt.scanTargets()
		err = rows.Scan(values...)
		if err != nil {
			return nil, err
		}
		records = append(records, rt.record(values))
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (rt *RecordTable) createTable() string {
	cols := make([]string, 0, len(rt.columns)+1)
	for idx, col := range rt.columns {
		if idx == rt.idIndex {
			cols = append(cols, identifier(col)+" TEXT NOT NULL")
		} else {
			cols = append(cols, identifier(col)+" TEXT")
		}
	}
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", identifier(rt.columns[rt.idIndex])))

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", identifier(rt.table), strings.Join(cols, ", "))
}

func (rt *RecordTable) selectList() string {
	cols := make([]string, 0, len(rt.columns))
	for _, col := range rt.columns {
		cols = append(cols, identifier(col)+"::text")
	}
	return strings.Join(cols, ", ")
}

func (rt *RecordTable) upsert() string {
	cols := make([]string, 0, len(rt.columns))
	params := make([]string, 0, len(rt.columns))
	updates := make([]string, 0, len(rt.columns))

	for idx, col := range rt.columns {
		cols = append(cols, identifier(col))
		params = append(params, fmt.Sprintf("$%d", idx+1))
		if idx != rt.idIndex {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", identifier(col), identifier(col)))
		}
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		identifier(rt.table), strings.Join(cols, ", "), strings.Join(params, ", "), identifier(rt.columns[rt.idIndex]),
	)

	if len(updates) == 0 {
		return sql + "DO NOTHING"
	}

	return sql + "DO UPDATE SET " + strings.Join(updates, ", ")
}

// arguments returns the upsert arguments in column order. Fields missing
// from the record are stored as NULL.
func (rt *RecordTable) arguments(id string, record map[string]string) []any {
	args := make([]any, 0, len(rt.columns))
	for idx, col := range rt.columns {
		if idx == rt.idIndex {
			args = append(args, id)
			continue
		}

		if v, ok := record[col]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	return args
}

func (rt *RecordTable) scanTargets() []any {
	values := make([]any, len(rt.columns))
	for idx := range values {
		values[idx] = new(*string)
	}
	return values
}

func (rt *RecordTable) record(values []any) map[string]string {
	record := make(map[string]string, len(rt.columns))
	for idx, col := range rt.columns {
		if v := *(values[idx].(**string)); v != nil {
			record[col] = *v
		}
	}
	return record
}

func identifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
