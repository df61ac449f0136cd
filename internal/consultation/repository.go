package consultation

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var ErrNotFound = errors.New("consultation not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Save(ctx context.Context, c *Consultation) error
	Delete(ctx context.Context, id uuid.UUID) error
}

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema migrations to the database at dbURL.
func Migrate(dbURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type postgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepo{db: db}
}

type consultationRow struct {
	ID             uuid.UUID `db:"id"`
	Messages       []byte    `db:"messages"`
	Symptoms       []byte    `db:"symptoms"`
	Input          string    `db:"input"`
	Suggestions    []byte    `db:"suggestions"`
	Typing         bool      `db:"typing"`
	LastPrediction []byte    `db:"last_prediction"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	query := `SELECT id, messages, symptoms, input, suggestions, typing, last_prediction, created_at, updated_at
		FROM consultations WHERE id = $1`

	var row consultationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c := &Consultation{
		ID:        row.ID,
		Input:     row.Input,
		Typing:    row.Typing,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	fields := []struct {
		name string
		data []byte
		dst  any
	}{
		{"messages", row.Messages, &c.Messages},
		{"symptoms", row.Symptoms, &c.Symptoms},
		{"suggestions", row.Suggestions, &c.Suggestions},
		{"last_prediction", row.LastPrediction, &c.LastPrediction},
	}
	for _, f := range fields {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}
	if c.Symptoms == nil {
		c.Symptoms = []string{}
	}
	if c.Suggestions == nil {
		c.Suggestions = []string{}
	}
	return c, nil
}

func (r *postgresRepo) Save(ctx context.Context, c *Consultation) error {
	messagesJSON, err := json.Marshal(c.Messages)
	if err != nil {
		return err
	}
	symptomsJSON, err := json.Marshal(c.Symptoms)
	if err != nil {
		return err
	}
	suggestionsJSON, err := json.Marshal(c.Suggestions)
	if err != nil {
		return err
	}
	var predictionJSON any
	if c.LastPrediction != nil {
		b, err := json.Marshal(c.LastPrediction)
		if err != nil {
			return err
		}
		predictionJSON = string(b)
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()

	query := `
		INSERT INTO consultations (id, messages, symptoms, input, suggestions, typing, last_prediction, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			messages = $2,
			symptoms = $3,
			input = $4,
			suggestions = $5,
			typing = $6,
			last_prediction = $7,
			updated_at = $9
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, string(messagesJSON), string(symptomsJSON), c.Input, string(suggestionsJSON), c.Typing, predictionJSON, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM consultations WHERE id = $1`, id)
	return err
}
