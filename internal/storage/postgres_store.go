package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sort"

	"github.com/lib/pq"

	"github.com/example/transpool/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies every embedded migration in file-name order. The
// statements are idempotent, so running it on each start is safe.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		stmt, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("storage: apply %s: %w", name, err)
		}
	}
	return nil
}

func (p *PostgresStore) SaveMatch(ctx context.Context, m models.MatchDTO) error {
	route, err := json.Marshal(m.Route)
	if err != nil {
		return fmt.Errorf("storage: encode route of match %d: %w", m.ID, err)
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO matches(id, request_id, rider_id, source, destination, total_price, drivers, departure, arrival, fuel_consumption, route, created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.Request.ID, m.Request.RiderID, m.Request.Source, m.Request.Destination, m.TotalPrice, pq.Array(m.Drivers), m.Departure, m.Arrival, m.FuelConsumption, route, m.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("storage: match %d: %w", m.ID, ErrDuplicateMatch)
	}
	return err
}

func (p *PostgresStore) NextMatchID(ctx context.Context) (int, error) {
	var next int
	if err := p.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM matches`).Scan(&next); err != nil {
		return 0, fmt.Errorf("storage: next match id: %w", err)
	}
	return next, nil
}

func (p *PostgresStore) MatchesByRider(ctx context.Context, riderID string) ([]models.MatchDTO, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, request_id, rider_id, source, destination, total_price, drivers, departure, arrival, fuel_consumption, route, created_at FROM matches WHERE rider_id=$1 ORDER BY id`, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchDTO
	for rows.Next() {
		var (
			m     models.MatchDTO
			route []byte
		)
		if err := rows.Scan(&m.ID, &m.Request.ID, &m.Request.RiderID, &m.Request.Source, &m.Request.Destination, &m.TotalPrice, pq.Array(&m.Drivers), &m.Departure, &m.Arrival, &m.FuelConsumption, &route, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(route, &m.Route); err != nil {
			return nil, fmt.Errorf("storage: decode route of match %d: %w", m.ID, err)
		}
		for _, leg := range m.Route {
			if !slices.Contains(m.OfferIDs, leg.OfferID) {
				m.OfferIDs = append(m.OfferIDs, leg.OfferID)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }

