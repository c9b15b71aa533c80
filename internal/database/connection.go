package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/kadirbelkuyu/docbridge/internal/config"
	"github.com/kadirbelkuyu/docbridge/internal/failure"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"

	_ "github.com/mattn/go-sqlite3"
)

// Connection is the only handle to the relational store. It keeps a single
// pooled connection, so the encryption key stays applied, and serializes
// every statement and transaction behind one lock.
type Connection struct {
	DB     *sql.DB
	Config *config.Config

	log *logger.Logger
	mu  sync.Mutex
}

func NewConnection(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	db, err := sql.Open("sqlite3", dataSourceName(cfg.Store))
	if err != nil {
		return nil, failure.Storage(fmt.Errorf("failed to open database connection: %w", err))
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	conn := &Connection{DB: db, Config: cfg, log: log}
	if err := conn.unlock(cfg.Store.EncryptionKey); err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", cfg.Store.Path).Debug("Store opened")
	return conn, nil
}

func dataSourceName(store config.StoreConfig) string {
	params := url.Values{}
	if store.ForeignKeys {
		params.Set("_foreign_keys", "on")
	} else {
		params.Set("_foreign_keys", "off")
	}
	return fmt.Sprintf("file:%s?%s", store.Path, params.Encode())
}

// unlock applies the encryption key and proves it by reading the catalog.
func (c *Connection) unlock(key string) error {
	if key != "" {
		pragma := fmt.Sprintf("PRAGMA key = '%s'", strings.ReplaceAll(key, "'", "''"))
		if _, err := c.DB.Exec(pragma); err != nil {
			return failure.Storage(fmt.Errorf("failed to apply encryption key: %w", err))
		}
	}

	var tables int
	if err := c.DB.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		return failure.Storage(fmt.Errorf("unable to read database (wrong key or corrupt file?): %w", err))
	}
	return nil
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.DB.Close()
}

// Exec runs a statement outside of any explicit transaction.
func (c *Connection) Exec(ctx context.Context, statement string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Debugf("Executing: %s", statement)
	if _, err := c.DB.ExecContext(ctx, statement); err != nil {
		return failure.Storage(fmt.Errorf("failed to execute statement: %w", err))
	}
	return nil
}

// Select runs a query and materializes every row as column name to value.
func (c *Connection) Select(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, failure.Storage(fmt.Errorf("failed to run query: %w", err))
	}
	defer rows.Close()

	result, err := ScanMaps(rows)
	if err != nil {
		return nil, failure.Storage(err)
	}
	return result, nil
}

// WithTx runs fn inside one transaction. Any error returned by fn rolls the
// transaction back and is returned unchanged.
func (c *Connection) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sqlTx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return failure.Storage(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	tx := &Tx{tx: sqlTx, log: c.log, stmts: make(map[string]*sql.Stmt)}
	if err := fn(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return failure.Storage(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (c *Connection) CountRows(ctx context.Context, table string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", QuoteIdentifier(table))
	if err := c.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, failure.Storage(fmt.Errorf("failed to count rows of %s: %w", table, err))
	}
	return count, nil
}

// Tables lists the user tables present in the store.
func (c *Connection) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.Select(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["name"].(string); ok {
			tables = append(tables, name)
		}
	}
	return tables, nil
}

func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
