package schema

import (
	"context"
	"fmt"

	"github.com/kadirbelkuyu/docbridge/internal/database"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

type Creator struct {
	conn   *database.Connection
	logger *logger.Logger
}

func NewCreator(conn *database.Connection, logger *logger.Logger) *Creator {
	return &Creator{
		conn:   conn,
		logger: logger,
	}
}

// CreateTables executes the rendered DDL for s in a single transaction.
func (c *Creator) CreateTables(ctx context.Context, s *Schema) error {
	statements, err := Statements(s)
	if err != nil {
		return err
	}

	c.logger.Info("Creating tables...")

	err = c.conn.WithTx(ctx, func(tx *database.Tx) error {
		for _, statement := range statements {
			if err := tx.Exec(ctx, statement); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Infof("%d statements executed for %d tables", len(statements), s.Len())
	return nil
}
