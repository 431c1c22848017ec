package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

type Database struct {
	db *sql.DB
}

type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

const schema = `
-- Per-guild automod policy
CREATE TABLE IF NOT EXISTS automod_config (
    guild_id TEXT PRIMARY KEY,
    enabled BOOLEAN DEFAULT FALSE,
    anti_raid BOOLEAN DEFAULT FALSE,
    max_joins_per_minute INTEGER DEFAULT 10,
    raid_action TEXT DEFAULT 'kick',
    anti_spam BOOLEAN DEFAULT FALSE,
    anti_link BOOLEAN DEFAULT FALSE,
    anti_caps BOOLEAN DEFAULT FALSE,
    anti_mention BOOLEAN DEFAULT FALSE,
    log_channel TEXT DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

-- Whitelisted users and roles, exempt from enforcement
CREATE TABLE IF NOT EXISTS automod_whitelist (
    id SERIAL PRIMARY KEY,
    guild_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    target_type TEXT NOT NULL, -- 'user' or 'role'
    added_by TEXT,
    created_at BIGINT NOT NULL,
    UNIQUE(guild_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_automod_whitelist_guild ON automod_whitelist(guild_id);
`

func NewDatabase(cfg PostgresConfig) (*Database, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Println("✓ Postgres connected, automod schema ready")

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Ping() error {
	return d.db.Ping()
}
