// Package store reads the catalog table from PostgreSQL.
//
// The table is read whole with SELECT * and converted to the same header +
// rows shape the file readers produce, so the catalog parser does not care
// where its data came from. Column names are the headers; they must match
// the catalog's required column names.
package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/m2o/internal/sheet"
)

// Querier is the subset of pgxpool.Pool used here.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens and pings a connection pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "database", poolConfig.ConnConfig.Database)
	return pool, nil
}

// LoadCatalog reads every row of table. table may be schema-qualified
// ("masterdata.catalog").
func LoadCatalog(ctx context.Context, q Querier, table string) (*sheet.Sheet, error) {
	ident := pgx.Identifier(strings.Split(table, "."))
	query := "SELECT * FROM " + ident.Sanitize()

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query catalog table %s: %w", table, describe(err))
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = f.Name
	}

	var data [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read catalog row %d: %w", len(data)+1, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = FormatValue(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read catalog table %s: %w", table, describe(err))
	}

	slog.Debug("catalog loaded from database", "table", table, "rows", len(data), "columns", len(headers))
	return &sheet.Sheet{Name: table, Headers: headers, Rows: data}, nil
}

// FormatValue renders a decoded column value the way a spreadsheet cell
// would hold it. NULL becomes "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.DateOnly)
	case pgtype.Numeric:
		if !x.Valid {
			return ""
		}
		if dv, err := x.Value(); err == nil {
			if s, ok := dv.(string); ok {
				return s
			}
		}
		return ""
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil || dv == nil {
			return ""
		}
		return FormatValue(dv)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// describe adds the server's detail to a PostgreSQL error.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pgErr.Detail)
	}
	return err
}
