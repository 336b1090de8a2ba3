package database

import (
	"concord-backend/internal/config"
	"context"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func init() {
	// sqlx doesn't know the modernc driver name, it uses ? like sqlite3
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Setup opens the database described by the config and creates the tables.
func Setup(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*sqlx.DB, error) {
	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	sugar.Infof("Connecting to database %s...", driver)

	db, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		err = logPragmaValues(db, sugar)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

func dataSource(cfg *config.Config) (string, string, error) {
	switch cfg.DbDriver {
	case "sqlite":
		return "sqlite", cfg.DbPath, nil
	case "mysql":
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase), nil
	case "postgres":
		if cfg.DatabaseURL != "" {
			return "pgx", cfg.DatabaseURL, nil
		}
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", url.QueryEscape(cfg.DbUser), url.QueryEscape(cfg.DbPassword), cfg.DbAddress, cfg.DbPort, cfg.DbDatabase)
		return "pgx", dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.DbDriver)
	}
}

// Open connects with one of the "sqlite", "mysql" or "pgx" drivers.
func Open(ctx context.Context, driver string, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if driver == "sqlite" {
		// there can be sqlite busy errors if this is not set to 1,
		// it also keeps an in-memory database alive on a single connection
		db.SetMaxOpenConns(1)
		db.SetConnMaxIdleTime(0)
		db.SetConnMaxLifetime(0)

		err = setPragmaValues(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	err = setupTables(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func setPragmaValues(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// these next 2 extremely speed up performance of sqlite
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = normal"); err != nil {
		return err
	}

	return nil
}

func logPragmaValues(db *sqlx.DB, sugar *zap.SugaredLogger) error {
	var foreignKeysValue bool
	err := db.Get(&foreignKeysValue, "PRAGMA foreign_keys")
	if err != nil {
		return err
	}

	var journalModeValue string
	err = db.Get(&journalModeValue, "PRAGMA journal_mode")
	if err != nil {
		return err
	}

	var synchronousValue int
	err = db.Get(&synchronousValue, "PRAGMA synchronous")
	if err != nil {
		return err
	}

	var synchronousValueStr string
	switch synchronousValue {
	case 0:
		synchronousValueStr = "off"
	case 1:
		synchronousValueStr = "normal"
	case 2:
		synchronousValueStr = "full"
	case 3:
		synchronousValueStr = "extra"
	default:
		return fmt.Errorf("synchronous value is unsupported")
	}

	sugar.Infow("sqlite pragma values",
		"foreign_keys", foreignKeysValue,
		"journal_mode", journalModeValue,
		"synchronous", synchronousValueStr,
	)

	return nil
}

// The statements stay within what sqlite, mysql and postgres all accept.
// Ids are snowflakes so creation time isn't stored separately.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id BIGINT PRIMARY KEY,
		email VARCHAR(64) NOT NULL UNIQUE,
		username VARCHAR(32) NOT NULL UNIQUE,
		name VARCHAR(64) NOT NULL,
		image_url VARCHAR(512) NOT NULL DEFAULT '',
		password VARCHAR(60) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS servers (
		id BIGINT PRIMARY KEY,
		profile_id BIGINT NOT NULL,
		name VARCHAR(100) NOT NULL,
		image_url VARCHAR(512) NOT NULL DEFAULT '',
		invite_code VARCHAR(32) NOT NULL UNIQUE,
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		id BIGINT PRIMARY KEY,
		role VARCHAR(16) NOT NULL,
		profile_id BIGINT NOT NULL,
		server_id BIGINT NOT NULL,
		UNIQUE (server_id, profile_id),
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		id BIGINT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		type VARCHAR(16) NOT NULL,
		profile_id BIGINT NOT NULL,
		server_id BIGINT NOT NULL,
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGINT PRIMARY KEY,
		content TEXT NOT NULL,
		file_url VARCHAR(512) NOT NULL DEFAULT '',
		member_id BIGINT NOT NULL,
		channel_id BIGINT NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		edited BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (channel_id, id),
		FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE,
		FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id BIGINT PRIMARY KEY,
		member_one_id BIGINT NOT NULL,
		member_two_id BIGINT NOT NULL,
		UNIQUE (member_one_id, member_two_id),
		FOREIGN KEY (member_one_id) REFERENCES members(id) ON DELETE CASCADE,
		FOREIGN KEY (member_two_id) REFERENCES members(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS direct_messages (
		id BIGINT PRIMARY KEY,
		content TEXT NOT NULL,
		file_url VARCHAR(512) NOT NULL DEFAULT '',
		member_id BIGINT NOT NULL,
		conversation_id BIGINT NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		edited BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (conversation_id, id),
		FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	)`,
}

func setupTables(ctx context.Context, db *sqlx.DB) error {
	for _, table := range tables {
		_, err := db.ExecContext(ctx, table)
		if err != nil {
			return err
		}
	}
	return nil
}
