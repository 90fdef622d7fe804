package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"

	"shop-analyzer/config"
	"shop-analyzer/models"
)

const maxConnectAttempts = 5

// Database represents the database connection
type Database struct {
	db *sql.DB
}

// NewDatabase opens a connection from config and verifies it with a bounded
// exponential-backoff ping so a dead database fails startup instead of
// hanging forever.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	waitInterval := 1 * time.Second
	for attempt := 1; ; attempt++ {
		err = db.Ping()
		if err == nil {
			break
		}
		if attempt >= maxConnectAttempts {
			db.Close()
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
		}
		log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, err)
		time.Sleep(waitInterval)
		waitInterval *= 2
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying sql.DB connection
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// CreateShopsTable creates the shops table if it doesn't exist
func (d *Database) CreateShopsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS shops (
		id INT AUTO_INCREMENT PRIMARY KEY,
		location_data JSON,
		inference_data JSON,
		image LONGBLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_shops_created_at (created_at)
	)`

	_, err := d.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create shops table: %w", err)
	}

	log.Info("shops table created/verified successfully")
	return nil
}

// SaveShop inserts one shop submission and returns its assigned id. Records
// are insert-only; nothing in this service updates or deletes them.
func (d *Database) SaveShop(location, inference json.RawMessage, image []byte) (int64, error) {
	result, err := d.db.Exec(`INSERT
	  INTO shops (location_data, inference_data, image)
	  VALUES (?, ?, ?)`,
		[]byte(location), []byte(inference), image)
	if err != nil {
		return 0, fmt.Errorf("failed to save shop submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted shop id: %w", err)
	}
	return id, nil
}

// GetShop fetches one shop submission by id. Returns (nil, nil) when the
// record does not exist.
func (d *Database) GetShop(id int64) (*models.ShopSubmission, error) {
	var shop models.ShopSubmission
	var locationData, inferenceData []byte

	row := d.db.QueryRow(`
	SELECT id, location_data, inference_data, image, created_at
	FROM shops
	WHERE id = ?`, id)

	err := row.Scan(&shop.ID, &locationData, &inferenceData, &shop.Image, &shop.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read shop submission: %w", err)
	}

	shop.LocationData = json.RawMessage(locationData)
	shop.InferenceData = json.RawMessage(inferenceData)
	return &shop, nil
}
