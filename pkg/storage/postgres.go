package storage

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for database/sql

	"github.com/predictix/maintflow/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresConfig holds database connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadPostgresConfigFromEnv loads connection settings from DB_* environment
// variables with local-development defaults.
func LoadPostgresConfigFromEnv() (PostgresConfig, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return PostgresConfig{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))

	return PostgresConfig{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "maintflow"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "maintflow"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// DSN returns the pgx-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// PostgresStore implements Store on PostgreSQL via the pgx driver.
type PostgresStore struct {
	db *stdsql.DB
}

// NewPostgresStore connects, configures pooling, pings, and applies pending
// migrations before returning a ready store.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection (useful for tests).
// Migrations are still applied.
func NewPostgresStoreFromDB(db *stdsql.DB) (*PostgresStore, error) {
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying handle for health checks.
func (s *PostgresStore) DB() *stdsql.DB { return s.db }

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// runMigrations applies embedded SQL migrations with golang-migrate.
// Migration files are embedded so production deployments need no external
// files; ErrNoChange means the schema is already current.
func runMigrations(db *stdsql.DB) error {
	source, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	sourceDriver, err := iofs.New(source, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("Database migrations applied")
	return nil
}

// SaveReading stores one reading.
func (s *PostgresStore) SaveReading(ctx context.Context, r models.SensorReading) error {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal reading metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (sensor_id, value, ts, sensor_type, unit, quality, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.SensorID, r.Value, r.Timestamp, string(r.SensorType), r.Unit, r.Quality, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading for sensor %s: %w", r.SensorID, err)
	}
	return nil
}

// GetBySensorID returns up to limit readings before the given time, newest first.
func (s *PostgresStore) GetBySensorID(ctx context.Context, sensorID string, limit int, before time.Time) ([]models.SensorReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sensor_id, value, ts, sensor_type, unit, quality, metadata
		 FROM sensor_readings
		 WHERE sensor_id = $1 AND ts < $2
		 ORDER BY ts DESC
		 LIMIT $3`,
		sensorID, before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for sensor %s: %w", sensorID, err)
	}
	defer rows.Close()

	var out []models.SensorReading
	for rows.Next() {
		var (
			r          models.SensorReading
			sensorType string
			metadata   []byte
		)
		if err := rows.Scan(&r.SensorID, &r.Value, &r.Timestamp, &sensorType, &r.Unit, &r.Quality, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		r.SensorType = models.SensorType(sensorType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal reading metadata: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneReadingsBefore deletes readings older than cutoff.
func (s *PostgresStore) PruneReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sensor_readings WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune readings before %s: %w", cutoff, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned readings: %w", err)
	}
	return removed, nil
}

// SaveDecision upserts a decision response by request ID.
func (s *PostgresStore) SaveDecision(ctx context.Context, d models.DecisionResponse) error {
	modifications, err := json.Marshal(d.Modifications)
	if err != nil {
		return fmt.Errorf("failed to marshal decision modifications: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO human_decisions (request_id, decision, decided_by, justification, modifications, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (request_id) DO UPDATE SET
		   decision = EXCLUDED.decision,
		   decided_by = EXCLUDED.decided_by,
		   justification = EXCLUDED.justification,
		   modifications = EXCLUDED.modifications,
		   decided_at = EXCLUDED.decided_at`,
		d.RequestID, d.Decision, d.DecidedBy, d.Justification, modifications, d.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert decision %s: %w", d.RequestID, err)
	}
	return nil
}

// GetDecision returns the stored response or ErrNotFound.
func (s *PostgresStore) GetDecision(ctx context.Context, requestID string) (models.DecisionResponse, error) {
	var (
		d             models.DecisionResponse
		modifications []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT request_id, decision, decided_by, justification, modifications, decided_at
		 FROM human_decisions WHERE request_id = $1`,
		requestID,
	).Scan(&d.RequestID, &d.Decision, &d.DecidedBy, &d.Justification, &modifications, &d.DecidedAt)
	if errors.Is(err, stdsql.ErrNoRows) {
		return models.DecisionResponse{}, ErrNotFound
	}
	if err != nil {
		return models.DecisionResponse{}, fmt.Errorf("failed to query decision %s: %w", requestID, err)
	}
	if len(modifications) > 0 {
		if err := json.Unmarshal(modifications, &d.Modifications); err != nil {
			return models.DecisionResponse{}, fmt.Errorf("failed to unmarshal decision modifications: %w", err)
		}
	}
	return d, nil
}

// SaveSchedule stores one schedule.
func (s *PostgresStore) SaveSchedule(ctx context.Context, sched models.MaintenanceSchedule) error {
	details, err := json.Marshal(sched.ScheduleDetails)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule details: %w", err)
	}
	violated, err := json.Marshal(sched.ConstraintsViolated)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule constraints: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO maintenance_schedules
		   (schedule_id, equipment_id, technician_id, start_time, end_time, details, constraints_violated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sched.ScheduleID, sched.EquipmentID, sched.AssignedTechnicianID,
		sched.ScheduledStartTime, sched.ScheduledEndTime, details, violated, sched.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule %s: %w", sched.ScheduleID, err)
	}
	return nil
}

// RecentSchedules returns up to limit schedules, newest first.
func (s *PostgresStore) RecentSchedules(ctx context.Context, limit int) ([]models.MaintenanceSchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT schedule_id, equipment_id, technician_id, start_time, end_time, details, constraints_violated, created_at
		 FROM maintenance_schedules
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var out []models.MaintenanceSchedule
	for rows.Next() {
		var (
			sched    models.MaintenanceSchedule
			details  []byte
			violated []byte
		)
		if err := rows.Scan(&sched.ScheduleID, &sched.EquipmentID, &sched.AssignedTechnicianID,
			&sched.ScheduledStartTime, &sched.ScheduledEndTime, &details, &violated, &sched.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &sched.ScheduleDetails); err != nil {
				return nil, fmt.Errorf("failed to unmarshal schedule details: %w", err)
			}
		}
		if len(violated) > 0 {
			if err := json.Unmarshal(violated, &sched.ConstraintsViolated); err != nil {
				return nil, fmt.Errorf("failed to unmarshal schedule constraints: %w", err)
			}
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}
