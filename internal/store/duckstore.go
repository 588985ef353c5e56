// Package store keeps the active series in an in-memory DuckDB database so the
// chart renderer can ask aggregate questions without walking the series itself.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/pump-sim/backend/internal/logger"
	"github.com/pump-sim/backend/internal/models"
	"github.com/rs/zerolog"
)

const (
	maxConcurrentQueries = 3
	stagingTable         = "samples_staging"
)

// DuckStore holds one series in an in-memory DuckDB table.
type DuckStore struct {
	db  *sql.DB
	log zerolog.Logger

	mu     sync.RWMutex
	loaded int

	// Semaphore to limit concurrent queries
	querySem chan struct{}
}

// NewDuckStore opens an in-memory DuckDB database and creates the schema.
func NewDuckStore(threads int, memoryLimit string) (*DuckStore, error) {
	log := logger.Component("duckstore")

	if threads < 1 {
		threads = 1
	}
	if memoryLimit == "" {
		memoryLimit = "256MB"
	}

	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", memoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("pragma %q: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE samples (
			frame         INTEGER PRIMARY KEY,
			day           DOUBLE NOT NULL,
			vibration     DOUBLE NOT NULL,
			pressure      DOUBLE NOT NULL,
			motor_current DOUBLE NOT NULL,
			status        VARCHAR NOT NULL,
			severity      TINYINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	log.Debug().Int("threads", threads).Str("memoryLimit", memoryLimit).Msg("in-memory store ready")

	return &DuckStore{
		db:       db,
		log:      log,
		querySem: make(chan struct{}, maxConcurrentQueries),
	}, nil
}

// Load replaces the table contents with series. Rows are appended into a
// staging table first and swapped in with one transaction, so a failed load
// leaves the previous series in place.
func (ds *DuckStore) Load(ctx context.Context, series models.Series) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	start := time.Now()

	conn, err := ds.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "CREATE OR REPLACE TABLE "+stagingTable+" AS SELECT * FROM samples LIMIT 0"); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+stagingTable); err != nil {
			ds.log.Warn().Err(err).Msg("failed to drop staging table")
		}
	}()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", stagingTable)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for _, s := range series {
			err := appender.AppendRow(
				int32(s.FrameIndex),
				s.ElapsedDays,
				s.Vibration,
				s.Pressure,
				s.MotorCurrent,
				string(s.Status),
				int8(s.Status.Severity()),
			)
			if err != nil {
				return fmt.Errorf("failed to append frame %d: %w", s.FrameIndex, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin swap: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM samples"); err != nil {
		return fmt.Errorf("failed to clear samples: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO samples SELECT * FROM "+stagingTable); err != nil {
		return fmt.Errorf("failed to swap in samples: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}

	ds.loaded = len(series)
	ds.log.Debug().Int("samples", len(series)).Dur("elapsed", time.Since(start)).Msg("series loaded")
	return nil
}

// Len returns the number of samples loaded.
func (ds *DuckStore) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.loaded
}

func (ds *DuckStore) acquire(ctx context.Context) (func(), error) {
	select {
	case ds.querySem <- struct{}{}:
		return func() { <-ds.querySem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DailySummary aggregates the series per simulated day.
func (ds *DuckStore) DailySummary(ctx context.Context) ([]models.DailySummary, error) {
	release, err := ds.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	rows, err := ds.db.QueryContext(ctx, `
		SELECT
			CAST(floor(frame / ?) AS INTEGER) AS d,
			COUNT(*),
			MIN(vibration),
			AVG(vibration),
			MAX(vibration),
			AVG(pressure),
			AVG(motor_current),
			MAX(severity)
		FROM samples
		GROUP BY d
		ORDER BY d
	`, float64(models.FramesPerDay))
	if err != nil {
		return nil, fmt.Errorf("daily summary query: %w", err)
	}
	defer rows.Close()

	var out []models.DailySummary
	for rows.Next() {
		var (
			d        models.DailySummary
			severity int
		)
		if err := rows.Scan(&d.Day, &d.Samples, &d.MinVibration, &d.AvgVibration, &d.MaxVibration,
			&d.AvgPressure, &d.AvgMotorCurrent, &severity); err != nil {
			return nil, fmt.Errorf("daily summary scan: %w", err)
		}
		if severity >= 0 && severity < len(models.AllStatuses) {
			d.WorstStatus = models.AllStatuses[severity]
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// StatusCounts returns how many samples fall in each status tier. Every tier
// is present in the result, possibly with a zero count.
func (ds *DuckStore) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	release, err := ds.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	rows, err := ds.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM samples GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status count query: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("status count scan: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

// Range returns the samples with from <= frame <= to in frame order.
func (ds *DuckStore) Range(ctx context.Context, from, to int) (models.Series, error) {
	release, err := ds.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	rows, err := ds.db.QueryContext(ctx, `
		SELECT frame, day, vibration, pressure, motor_current, status
		FROM samples
		WHERE frame BETWEEN ? AND ?
		ORDER BY frame
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	out := models.Series{}
	for rows.Next() {
		var (
			s      models.Sample
			status string
		)
		if err := rows.Scan(&s.FrameIndex, &s.ElapsedDays, &s.Vibration, &s.Pressure, &s.MotorCurrent, &status); err != nil {
			return nil, fmt.Errorf("range scan: %w", err)
		}
		s.Status = models.Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// FirstFrameAtLeast returns the first frame whose status is at least as severe
// as status, or -1 when no sample qualifies.
func (ds *DuckStore) FirstFrameAtLeast(ctx context.Context, status models.Status) (int, error) {
	release, err := ds.acquire(ctx)
	if err != nil {
		return -1, err
	}
	defer release()

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	var frame sql.NullInt64
	err = ds.db.QueryRowContext(ctx,
		`SELECT MIN(frame) FROM samples WHERE severity >= ?`, status.Severity()).Scan(&frame)
	if err != nil {
		return -1, fmt.Errorf("first frame query: %w", err)
	}
	if !frame.Valid {
		return -1, nil
	}
	return int(frame.Int64), nil
}

// Close releases the database.
func (ds *DuckStore) Close() error {
	if ds.db != nil {
		return ds.db.Close()
	}
	return nil
}
