package schema

import (
	"fmt"
	"strings"

	"github.com/kadirbelkuyu/docbridge/internal/failure"
)

// Statements renders one CREATE TABLE statement per declared table, each
// followed by the statements of its junction tables.
func Statements(s *Schema) ([]string, error) {
	if s.Len() == 0 {
		return nil, failure.Schema(fmt.Errorf("db config has not been properly initialized: no tables to create"))
	}

	var statements []string
	for _, table := range s.tables {
		statements = append(statements, createTableSQL(table))
		for _, junction := range table.Junctions() {
			statements = append(statements, createJunctionSQL(junction))
		}
	}
	return statements, nil
}

// Render returns the complete DDL script for s. The output only depends on s.
func Render(s *Schema) (string, error) {
	statements, err := Statements(s)
	if err != nil {
		return "", err
	}
	return strings.Join(statements, "\n"), nil
}

func createTableSQL(table *TableDefinition) string {
	var defs []string
	for _, col := range table.MappedColumns() {
		def := fmt.Sprintf("%s %s", col.Name, col.SQLType)
		if col.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	defs = append(defs, fmt.Sprintf("%s %s", ExtraColumn, ExtraColumnType))

	for _, c := range table.Constraints {
		defs = append(defs, foreignKeySQL(c.ReferencedTable, c.Column, c.ReferencedColumn))
	}

	return createSQL(table.Name, defs)
}

func createJunctionSQL(j JunctionTable) string {
	defs := []string{
		fmt.Sprintf("%s %s PRIMARY KEY", IDColumn, JunctionKeyType),
		fmt.Sprintf("%s %s", j.ReferencedColumn, JunctionKeyType),
		fmt.Sprintf("%s %s", j.OwnerColumn, JunctionKeyType),
		fmt.Sprintf("%s %s", ExtraColumn, ExtraColumnType),
		foreignKeySQL(j.ReferencedTable, j.ReferencedColumn, j.ReferencedKey),
		foreignKeySQL(j.OwnerTable, j.OwnerColumn, j.OwnerKey),
	}
	return createSQL(j.Name, defs)
}

func foreignKeySQL(referencedTable, column, referencedColumn string) string {
	return fmt.Sprintf(
		"CONSTRAINT fk_%s FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE SET NULL",
		referencedTable,
		column,
		referencedTable,
		referencedColumn,
	)
}

func createSQL(name string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", name, strings.Join(defs, ",\n"))
}
