package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andresmejia3/facewatch/internal/gallery"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection holding reference encodings.
type Store struct {
	conn *pgx.Conn
}

// IdentitySummary describes one stored identity.
type IdentitySummary struct {
	Label     string
	Count     int
	Dim       int
	CreatedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the reference table and vector extension if they don't exist (Auto-Migration).
// The vector column is unsized so encoders of any dimensionality can be stored.
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS reference_encodings (
			id BIGSERIAL PRIMARY KEY,
			label TEXT NOT NULL,
			embedding VECTOR NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS reference_encodings_label_idx ON reference_encodings (label);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// vecToString formats a float slice into a PostgreSQL vector string format "[1.0,2.0,...]"
func vecToString(vec []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector reads the text form of a pgvector value.
func parseVector(s string) ([]float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, errors.New("empty vector")
	}
	parts := strings.Split(s, ",")
	vec := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		vec[i] = v
	}
	return vec, nil
}

// ReplaceIdentity stores id's encodings, replacing any rows already stored under its label.
func (s *Store) ReplaceIdentity(ctx context.Context, id gallery.KnownIdentity) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM reference_encodings WHERE label = $1", id.Label); err != nil {
		return err
	}
	for _, enc := range id.Encodings {
		if _, err := tx.Exec(ctx, "INSERT INTO reference_encodings (label, embedding) VALUES ($1, $2::vector)", id.Label, vecToString(enc)); err != nil {
			return fmt.Errorf("insert encoding for %q: %w", id.Label, err)
		}
	}
	return tx.Commit(ctx)
}

// LoadIdentities returns the stored identities grouped by label, ordered by
// each label's first row.
func (s *Store) LoadIdentities(ctx context.Context) ([]gallery.KnownIdentity, error) {
	rows, err := s.conn.Query(ctx, "SELECT label, embedding::text FROM reference_encodings ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []gallery.KnownIdentity
	index := make(map[string]int)
	for rows.Next() {
		var label, vecStr string
		if err := rows.Scan(&label, &vecStr); err != nil {
			return nil, err
		}
		vec, err := parseVector(vecStr)
		if err != nil {
			return nil, fmt.Errorf("identity %q: %w", label, err)
		}
		i, ok := index[label]
		if !ok {
			i = len(identities)
			index[label] = i
			identities = append(identities, gallery.KnownIdentity{Label: label})
		}
		identities[i].Encodings = append(identities[i].Encodings, vec)
	}
	return identities, rows.Err()
}

// ListIdentities summarizes stored identities in the order they were first added.
func (s *Store) ListIdentities(ctx context.Context) ([]IdentitySummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT label, COUNT(*), MAX(vector_dims(embedding)), MIN(created_at)
		FROM reference_encodings
		GROUP BY label
		ORDER BY MIN(id)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IdentitySummary
	for rows.Next() {
		var sum IdentitySummary
		if err := rows.Scan(&sum.Label, &sum.Count, &sum.Dim, &sum.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Reset drops the application tables to clear the database state.
// The schema is recreated by the next New.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `DROP TABLE IF EXISTS reference_encodings CASCADE;`)
	return err
}
