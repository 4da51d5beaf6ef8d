package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreConfig names one independently-addressable store. The asset registry
// and the marketplace each get their own pool and their own schema; nothing
// in the codebase may open a transaction spanning both.
type StoreConfig struct {
	Name       string // used in env var names and logs
	DSNEnv     string // e.g. ASSET_DATABASE_URL
	SchemaEnv  string // e.g. ASSET_SCHEMA_PATH
	SchemaPath string // default schema file
}

func AssetStoreConfig() StoreConfig {
	return StoreConfig{
		Name:       "assets",
		DSNEnv:     "ASSET_DATABASE_URL",
		SchemaEnv:  "ASSET_SCHEMA_PATH",
		SchemaPath: "pkg/db/asset_schema.sql",
	}
}

func MarketStoreConfig() StoreConfig {
	return StoreConfig{
		Name:       "market",
		DSNEnv:     "MARKET_DATABASE_URL",
		SchemaEnv:  "MARKET_SCHEMA_PATH",
		SchemaPath: "pkg/db/market_schema.sql",
	}
}

// Connect opens the pool for one store and pings it. Falls back to
// DATABASE_URL so a single-database dev setup still works; the stores remain
// logically separate even when they share a server.
func Connect(cfg StoreConfig) *pgxpool.Pool {
	dsn := os.Getenv(cfg.DSNEnv)
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		log.Fatalf("%s or DATABASE_URL environment variable not set", cfg.DSNEnv)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatalf("Failed to parse %s store DB config: %v", cfg.Name, err)
	}

	config.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", 10))
	config.MinConns = int32(getEnvAsInt("DB_MIN_CONNS", 2))
	config.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "5m")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		log.Fatalf("Unable to connect to %s store: %v", cfg.Name, err)
	}

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("%s store ping failed: %v", cfg.Name, err)
	}

	log.Printf("Connected to %s store", cfg.Name)

	// Apply schema on startup unless explicitly disabled
	if !strings.EqualFold(os.Getenv("APPLY_SCHEMA_ON_START"), "false") {
		schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelSchema()
		if err := ApplySchema(schemaCtx, pool, cfg); err != nil {
			log.Fatalf("Failed to apply %s store schema: %v", cfg.Name, err)
		}
	}

	return pool
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s, using default: %s", key, defaultValue)
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// ApplySchema reads the store's SQL schema file and executes it against the
// provided pool. Override the path with the store's schema env var.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool, cfg StoreConfig) error {
	schemaPath := os.Getenv(cfg.SchemaEnv)
	if schemaPath == "" {
		schemaPath = cfg.SchemaPath
	}

	bytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}

	sql := strings.TrimSpace(string(bytes))
	if sql == "" {
		return fmt.Errorf("schema file is empty: %s", schemaPath)
	}

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	log.Printf("%s store schema applied from %s", cfg.Name, schemaPath)
	return nil
}
