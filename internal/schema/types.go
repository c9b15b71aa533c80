package schema

import (
	"strings"
)

const (
	// ExtraColumn holds the JSON-encoded document fields no column maps.
	ExtraColumn     = "extra"
	ExtraColumnType = "VARCHAR(5000)"

	// IDColumn is the document identity used to key junction rows.
	IDColumn = "_id"

	DefaultReferenceType   = "VARCHAR(100)"
	DefaultReferenceColumn = IDColumn
	JunctionKeyType        = "VARCHAR(100)"
)

type ColumnDefinition struct {
	Name       string
	SQLType    string
	PrimaryKey bool
}

// SimpleConstraint is a scalar foreign key owned by Column.
type SimpleConstraint struct {
	Column           string
	SQLType          string
	ReferencedTable  string
	ReferencedColumn string
}

// ManyOnConstraint maps the array field ArrayField, whose sub-objects carry
// InnerKey, onto rows of a junction table.
type ManyOnConstraint struct {
	Key              string
	ArrayField       string
	InnerKey         string
	ReferencedTable  string
	ReferencedColumn string
	Discriminator    string
}

type TableDefinition struct {
	Name        string
	Columns     []ColumnDefinition
	Constraints []SimpleConstraint
	ManyOn      []ManyOnConstraint
}

// JunctionTable is derived from a ManyOnConstraint of its owner table.
type JunctionTable struct {
	Name             string
	OwnerTable       string
	OwnerColumn      string
	OwnerKey         string
	ReferencedTable  string
	ReferencedColumn string
	ReferencedKey    string
}

// PrimaryKey returns the declared primary-key column, falling back to _id.
func (t *TableDefinition) PrimaryKey() string {
	for _, col := range t.Columns {
		if col.PrimaryKey {
			return col.Name
		}
	}
	return IDColumn
}

// MappedColumns lists every column a document field maps onto: plain columns
// and the owning columns of simple constraints, sorted by name.
func (t *TableDefinition) MappedColumns() []ColumnDefinition {
	mapped := make([]ColumnDefinition, 0, len(t.Columns)+len(t.Constraints))
	mapped = append(mapped, t.Columns...)
	for _, c := range t.Constraints {
		mapped = append(mapped, ColumnDefinition{Name: c.Column, SQLType: c.SQLType})
	}
	sortColumns(mapped)
	return mapped
}

// ColumnType returns the SQL type of a mapped column.
func (t *TableDefinition) ColumnType(name string) (string, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col.SQLType, true
		}
	}
	for _, c := range t.Constraints {
		if c.Column == name {
			return c.SQLType, true
		}
	}
	return "", false
}

func (t *TableDefinition) Junction(m ManyOnConstraint) JunctionTable {
	return JunctionTable{
		Name:             t.Name + "_" + m.ReferencedTable,
		OwnerTable:       t.Name,
		OwnerColumn:      t.Name + "Id",
		OwnerKey:         t.PrimaryKey(),
		ReferencedTable:  m.ReferencedTable,
		ReferencedColumn: m.ReferencedTable + "Id",
		ReferencedKey:    m.ReferencedColumn,
	}
}

func (t *TableDefinition) Junctions() []JunctionTable {
	junctions := make([]JunctionTable, 0, len(t.ManyOn))
	for _, m := range t.ManyOn {
		junctions = append(junctions, t.Junction(m))
	}
	return junctions
}

// Schema is built once from configuration and only read afterwards.
type Schema struct {
	tables []*TableDefinition
	byName map[string]*TableDefinition
}

func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tables)
}

// Tables returns the declared tables in configuration order.
func (s *Schema) Tables() []*TableDefinition {
	if s == nil {
		return nil
	}
	tables := make([]*TableDefinition, len(s.tables))
	copy(tables, s.tables)
	return tables
}

func (s *Schema) Table(name string) (*TableDefinition, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.byName[name]
	return t, ok
}

func IsBoolean(sqlType string) bool {
	return strings.EqualFold(strings.TrimSpace(sqlType), "BOOLEAN")
}
