package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"dinepick/internal/metrics"
	"dinepick/pkg/database"
	"dinepick/pkg/types"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var restaurantColumns = map[string]string{
	"id":       "TEXT",
	"position": "INTEGER",
	"name":     "TEXT",
	"location": "TEXT",
	"rating":   "REAL",
	"price":    "TEXT",
	"address":  "TEXT",
}

// SQLite serves candidates from the restaurants tables of a SQLite database.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens the catalog database, applies migrations and seeds the
// built-in restaurants into an empty catalog.
func OpenSQLite(ctx context.Context, cfg *database.Config, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &SQLite{db: db, logger: logger.With("component", "catalog")}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM restaurants").Scan(&count); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to count restaurants: %w", err)
	}
	if count == 0 {
		if err := s.Seed(ctx, seed); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	files, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	applied, err := database.NewMigrationManager(s.db, files).ApplyMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	if applied > 0 {
		s.logger.Info("catalog migrations applied", "count", applied)
	}

	v := database.NewSchemaValidator(s.db)
	if err := v.RequireTables(ctx, "restaurants", "restaurant_cuisines"); err != nil {
		return err
	}
	if err := v.RequireIndexes(ctx, "idx_restaurants_position", "idx_restaurant_cuisines_cuisine"); err != nil {
		return err
	}
	return v.RequireColumns(ctx, "restaurants", restaurantColumns)
}

// Seed replaces the whole catalog with candidates in one transaction.
func (s *SQLite) Seed(ctx context.Context, candidates []types.Candidate) error {
	if err := types.ValidateCandidates(candidates); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM restaurants"); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}

	insertRestaurant, err := tx.PrepareContext(ctx, `
		INSERT INTO restaurants (id, position, name, location, image, url, rating, price, phone, address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = insertRestaurant.Close() }()

	insertCuisine, err := tx.PrepareContext(ctx,
		"INSERT INTO restaurant_cuisines (restaurant_id, position, cuisine) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = insertCuisine.Close() }()

	for i, c := range candidates {
		if _, err := insertRestaurant.ExecContext(ctx,
			c.ID, i, c.Name, c.Location, c.Image, c.URL, c.Rating, c.Price, c.Phone, c.Address,
		); err != nil {
			return fmt.Errorf("failed to insert restaurant %s: %w", c.ID, err)
		}
		for j, cuisine := range c.Cuisines {
			if _, err := insertCuisine.ExecContext(ctx, c.ID, j, cuisine); err != nil {
				return fmt.Errorf("failed to insert cuisine for %s: %w", c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("catalog seeded", "restaurants", len(candidates))
	return nil
}

// Search implements interfaces.CandidateProvider.
func (s *SQLite) Search(ctx context.Context, query types.CandidateQuery) ([]types.Candidate, error) {
	candidates, err := s.all(ctx)
	if err != nil {
		metrics.CatalogSearches.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamProvider, err)
	}
	metrics.CatalogSearches.WithLabelValues(metrics.ResultOK).Inc()
	return Filter(candidates, query), nil
}

func (s *SQLite) all(ctx context.Context) ([]types.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, location, image, url, rating, price, phone, address
		FROM restaurants
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var candidates []types.Candidate
	index := make(map[string]int)
	for rows.Next() {
		var c types.Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Location, &c.Image, &c.URL, &c.Rating, &c.Price, &c.Phone, &c.Address); err != nil {
			return nil, err
		}
		index[c.ID] = len(candidates)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cuisines, err := s.db.QueryContext(ctx,
		"SELECT restaurant_id, cuisine FROM restaurant_cuisines ORDER BY restaurant_id, position")
	if err != nil {
		return nil, err
	}
	defer func() { _ = cuisines.Close() }()

	for cuisines.Next() {
		var id, cuisine string
		if err := cuisines.Scan(&id, &cuisine); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			candidates[i].Cuisines = append(candidates[i].Cuisines, cuisine)
		}
	}
	return candidates, cuisines.Err()
}

// HealthCheck implements interfaces.HealthChecker.
func (s *SQLite) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamProvider, err)
	}
	return nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
