package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/kadirbelkuyu/docbridge/internal/config"
	"github.com/kadirbelkuyu/docbridge/internal/database"
	"github.com/kadirbelkuyu/docbridge/internal/failure"
	"github.com/kadirbelkuyu/docbridge/internal/schema"
	"github.com/kadirbelkuyu/docbridge/internal/transfer"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
	"github.com/kadirbelkuyu/docbridge/pkg/progress"
)

// Service owns the store handle and runs every store operation on one
// background worker. The store is opened on first use.
type Service struct {
	cfg          *config.Config
	log          *logger.Logger
	out          io.Writer
	showProgress bool
	worker       *transfer.Worker

	schema *schema.Schema
	conn   *database.Connection
}

type TableCount struct {
	Table string
	Rows  int64
}

func NewService(cfg *config.Config, log *logger.Logger, out io.Writer, showProgress bool) *Service {
	if out == nil {
		out = os.Stdout
	}
	return &Service{
		cfg:          cfg,
		log:          log,
		out:          out,
		showProgress: showProgress,
		worker:       transfer.NewWorker(),
	}
}

func (s *Service) Schema() (*schema.Schema, error) {
	if s.schema != nil {
		return s.schema, nil
	}
	loaded, err := schema.Load(s.cfg.Schema.Path, s.cfg.Schema.Inline)
	if err != nil {
		return nil, err
	}
	s.schema = loaded
	return loaded, nil
}

func (s *Service) StorePath() string {
	return s.cfg.Store.Path
}

// SetImportSource overrides import.source for this service.
func (s *Service) SetImportSource(source string) error {
	cfg := *s.cfg
	cfg.Import.Source = config.NormalizeEndpoint(source)
	if err := cfg.Validate(); err != nil {
		return failure.Config(err)
	}
	s.cfg.Import.Source = cfg.Import.Source
	return nil
}

// SetExportTarget overrides export.target for this service.
func (s *Service) SetExportTarget(target string) error {
	cfg := *s.cfg
	cfg.Export.Target = config.NormalizeEndpoint(target)
	if err := cfg.Validate(); err != nil {
		return failure.Config(err)
	}
	s.cfg.Export.Target = cfg.Export.Target
	return nil
}

// DDL renders the CREATE TABLE statements without touching the store.
func (s *Service) DDL() (string, error) {
	sch, err := s.Schema()
	if err != nil {
		return "", err
	}
	ddl, err := schema.Render(sch)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(s.out, ddl)
	return ddl, nil
}

// Setup creates the declared tables. With reset the store file is deleted
// first, which discards every row.
func (s *Service) Setup(ctx context.Context, reset bool) error {
	sch, err := s.Schema()
	if err != nil {
		return err
	}

	err = s.worker.Submit(ctx, func(ctx context.Context) error {
		if reset {
			if err := s.closeStore(); err != nil {
				return failure.Storage(err)
			}
			if err := os.Remove(s.cfg.Store.Path); err != nil && !os.IsNotExist(err) {
				return failure.Storage(fmt.Errorf("failed to remove store: %w", err))
			}
			s.log.WithField("path", s.cfg.Store.Path).Info("Store reset")
		}

		conn, err := s.store()
		if err != nil {
			return err
		}
		return schema.NewCreator(conn, s.log).CreateTables(ctx, sch)
	})
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(s.out, "Store ready at %s: %d tables, %d junction tables\n",
		s.cfg.Store.Path, sch.Len(), countJunctions(sch))
	return nil
}

// Import loads dir (or the configured import source) into the store.
func (s *Service) Import(ctx context.Context, dir string) (*transfer.Summary, error) {
	sch, err := s.Schema()
	if err != nil {
		return nil, err
	}

	src, err := transfer.NewSource(ctx, s.cfg, dir)
	if err != nil {
		return nil, failure.Import("", err)
	}
	defer src.Close()

	report, done := s.progress("import")
	var summary *transfer.Summary
	err = s.worker.Submit(ctx, func(ctx context.Context) error {
		conn, err := s.store()
		if err != nil {
			return err
		}
		if err := s.verifyStore(ctx, conn, sch); err != nil {
			return err
		}
		summary, err = transfer.NewImporter(conn, sch, s.log, report).Import(ctx, src)
		return err
	})
	done()
	if err != nil {
		return nil, err
	}

	color.New(color.FgGreen, color.Bold).Fprintln(s.out, summary.String())
	return summary, nil
}

// Export writes every declared table to dir (or the configured target).
func (s *Service) Export(ctx context.Context, dir string) ([]transfer.CollectionInfo, error) {
	sch, err := s.Schema()
	if err != nil {
		return nil, err
	}

	sink, err := transfer.NewSink(ctx, s.cfg, dir)
	if err != nil {
		return nil, failure.Export("", err)
	}
	defer sink.Close()

	report, done := s.progress("export")
	var infos []transfer.CollectionInfo
	err = s.worker.Submit(ctx, func(ctx context.Context) error {
		conn, err := s.store()
		if err != nil {
			return err
		}
		if err := s.verifyStore(ctx, conn, sch); err != nil {
			return err
		}
		infos, err = transfer.NewExporter(conn, sch, s.log, report).Export(ctx, sink)
		return err
	})
	done()
	if err != nil {
		return nil, err
	}

	green := color.New(color.FgGreen, color.Bold)
	cyan := color.New(color.FgCyan)
	green.Fprintf(s.out, "Exported %d collections\n", len(infos))
	for _, info := range infos {
		cyan.Fprintf(s.out, "  %-24s", info.Collection)
		fmt.Fprintf(s.out, " %6d docs  %s", info.Documents, info.Location)
		if info.Checksum != "" {
			fmt.Fprintf(s.out, "  %d bytes  sha256:%s", info.Size, shortChecksum(info.Checksum))
		}
		fmt.Fprintln(s.out)
	}
	return infos, nil
}

// Query runs a read statement and prints each row as one JSON object.
func (s *Service) Query(ctx context.Context, query string) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	err := s.worker.Submit(ctx, func(ctx context.Context) error {
		conn, err := s.store()
		if err != nil {
			return err
		}
		rows, err = conn.Select(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("failed to encode row: %w", err)
		}
		fmt.Fprintln(s.out, string(line))
	}
	return rows, nil
}

// Exec runs a statement that returns no rows.
func (s *Service) Exec(ctx context.Context, statement string) error {
	err := s.worker.Submit(ctx, func(ctx context.Context) error {
		conn, err := s.store()
		if err != nil {
			return err
		}
		return conn.Exec(ctx, statement)
	})
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintln(s.out, "OK")
	return nil
}

// Counts reports the row count of every declared table followed by its
// junction tables.
func (s *Service) Counts(ctx context.Context) ([]TableCount, error) {
	sch, err := s.Schema()
	if err != nil {
		return nil, err
	}

	var counts []TableCount
	err = s.worker.Submit(ctx, func(ctx context.Context) error {
		conn, err := s.store()
		if err != nil {
			return err
		}
		for _, table := range sch.Tables() {
			names := []string{table.Name}
			for _, j := range table.Junctions() {
				names = append(names, j.Name)
			}
			for _, name := range names {
				n, err := conn.CountRows(ctx, name)
				if err != nil {
					return err
				}
				counts = append(counts, TableCount{Table: name, Rows: n})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(s.out, "\nRows in %s:\n", s.cfg.Store.Path)
	fmt.Fprintln(s.out, strings.Repeat("=", 36))
	for _, c := range counts {
		fmt.Fprintf(s.out, "%-28s %d\n", c.Table, c.Rows)
	}
	return counts, nil
}

// Inspect lists the tables found in the store with their columns, foreign
// keys and row counts.
func (s *Service) Inspect(ctx context.Context) ([]schema.StoredTable, error) {
	var tables []schema.StoredTable
	err := s.worker.Submit(ctx, func(ctx context.Context) error {
		conn, err := s.store()
		if err != nil {
			return err
		}
		tables, err = schema.NewExtractor(conn, s.log).ExtractTables(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	blue := color.New(color.FgBlue, color.Bold)
	for _, table := range tables {
		blue.Fprintf(s.out, "%s", table.Name)
		fmt.Fprintf(s.out, " (%d rows)\n", table.RowCount)
		for _, col := range table.Columns {
			marker := ""
			if col.PrimaryKey {
				marker = " PRIMARY KEY"
			}
			fmt.Fprintf(s.out, "  %-24s %s%s\n", col.Name, col.DataType, marker)
		}
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(s.out, "  %-24s -> %s(%s) ON DELETE %s\n", fk.Column, fk.ReferencedTable, fk.ReferencedColumn, fk.OnDelete)
		}
	}
	return tables, nil
}

// Close releases the store and stops the worker.
func (s *Service) Close() error {
	err := s.worker.Submit(context.Background(), func(context.Context) error {
		return s.closeStore()
	})
	s.worker.Stop()
	return err
}

// store and closeStore only run on the worker goroutine.
func (s *Service) store() (*database.Connection, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := database.NewConnection(s.cfg, s.log)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

func (s *Service) verifyStore(ctx context.Context, conn *database.Connection, sch *schema.Schema) error {
	stored, err := schema.NewExtractor(conn, s.log).ExtractTables(ctx)
	if err != nil {
		return err
	}
	return schema.Verify(sch, stored)
}

func (s *Service) closeStore() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Service) progress(label string) (transfer.ProgressFunc, func()) {
	if !s.showProgress {
		return nil, func() {}
	}
	tracker := progress.NewTracker(label)
	return tracker.Update, tracker.Done
}

func countJunctions(sch *schema.Schema) int {
	n := 0
	for _, table := range sch.Tables() {
		n += len(table.Junctions())
	}
	return n
}

func shortChecksum(checksum string) string {
	if len(checksum) <= 16 {
		return checksum
	}
	return checksum[:16] + "..."
}
