package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// categoryByCollection maps allowlisted collection values to product
// categories. Anything else is treated as a tag filter.
var categoryByCollection = map[string]string{
	"men":   "MEN",
	"women": "WOMEN",
	"kids":  "KIDS",
}

var collectionShape = regexp.MustCompile(`^[a-z0-9-]{1,32}$`)

// ListProductsByCollection retrieves active products for a collection value.
// Unknown or malformed collections degrade to an empty result, never an error.
func (s *Store) ListProductsByCollection(ctx context.Context, collection string) ([]models.Product, error) {
	if collection == "" || collection == "all" {
		var products []models.Product
		err := s.db.SelectContext(ctx, &products,
			"SELECT * FROM products WHERE active = true ORDER BY created_at DESC")
		return products, err
	}

	if !collectionShape.MatchString(collection) {
		return []models.Product{}, nil
	}

	if category, ok := categoryByCollection[collection]; ok {
		var products []models.Product
		err := s.db.SelectContext(ctx, &products,
			"SELECT * FROM products WHERE active = true AND category = $1 ORDER BY created_at DESC",
			category)
		return products, err
	}

	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE active = true AND $1 = ANY(tags) ORDER BY created_at DESC",
		collection)
	if products == nil {
		products = []models.Product{}
	}
	return products, err
}

// GetActiveProductsByIDs retrieves active products in one batch
func (s *Store) GetActiveProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE active = true AND id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// DecrementInventory reduces available stock after a paid order, floored at
// zero. Post-payment settlement only; nothing is reserved at checkout time.
func (s *Store) DecrementInventory(ctx context.Context, productID string, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET inventory_qty = GREATEST(inventory_qty - $1, 0), updated_at = NOW() WHERE id = $2",
		quantity, productID)
	return err
}
