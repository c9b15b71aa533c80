package transfer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kadirbelkuyu/docbridge/internal/document"
	"github.com/kadirbelkuyu/docbridge/internal/schema"
)

// Row is one relational row ready for an insert-or-replace.
type Row struct {
	Table   string
	Columns []string
	Values  []interface{}
}

// JunctionKey identifies a junction row by the owner document and the
// referenced entity. A nil ReferencedID records that the owner has no
// relation.
type JunctionKey struct {
	OwnerID      string
	ReferencedID *string
}

// ID serializes the key for the single-column primary key of the junction
// table.
func (k JunctionKey) ID() string {
	if k.ReferencedID == nil {
		return k.OwnerID
	}
	return k.OwnerID + *k.ReferencedID
}

func (k JunctionKey) Equal(other JunctionKey) bool {
	if k.OwnerID != other.OwnerID {
		return false
	}
	if k.ReferencedID == nil || other.ReferencedID == nil {
		return k.ReferencedID == nil && other.ReferencedID == nil
	}
	return *k.ReferencedID == *other.ReferencedID
}

func (k JunctionKey) String() string {
	if k.ReferencedID == nil {
		return fmt.Sprintf("(%s, null)", k.OwnerID)
	}
	return fmt.Sprintf("(%s, %s)", k.OwnerID, *k.ReferencedID)
}

type JunctionRow struct {
	Junction schema.JunctionTable
	Key      JunctionKey
}

func (j JunctionRow) Row() Row {
	var referenced interface{}
	if j.Key.ReferencedID != nil {
		referenced = *j.Key.ReferencedID
	}
	return Row{
		Table:   j.Junction.Name,
		Columns: []string{schema.IDColumn, j.Junction.ReferencedColumn, j.Junction.OwnerColumn},
		Values:  []interface{}{j.Key.ID(), referenced, j.Key.OwnerID},
	}
}

// ComposeRow maps doc onto a row of table plus its junction rows. Mapped
// columns are removed from doc; whatever remains is stored in the extra
// column, many-on source arrays included.
func ComposeRow(table *schema.TableDefinition, doc *document.Document) (Row, []JunctionRow, error) {
	mapped := table.MappedColumns()
	row := Row{
		Table:   table.Name,
		Columns: make([]string, 0, len(mapped)+1),
		Values:  make([]interface{}, 0, len(mapped)+1),
	}

	primaryKey := table.PrimaryKey()
	var ownerID *string

	for _, col := range mapped {
		raw, present := doc.Get(col.Name)

		var value interface{}
		if present && !document.IsNull(raw) {
			if schema.IsBoolean(col.SQLType) {
				b, err := document.Bool(raw)
				if err != nil {
					return Row{}, nil, fmt.Errorf("column %s: %w", col.Name, err)
				}
				value = b
			} else {
				s, err := document.ScalarString(raw)
				if err != nil {
					return Row{}, nil, fmt.Errorf("column %s: %w", col.Name, err)
				}
				value = s
				if col.Name == primaryKey {
					ownerID = &s
				}
			}
		}

		row.Columns = append(row.Columns, col.Name)
		row.Values = append(row.Values, value)
		doc.Delete(col.Name)
	}

	junctions, err := composeJunctions(table, doc, ownerID)
	if err != nil {
		return Row{}, nil, err
	}

	extra, err := json.Marshal(doc)
	if err != nil {
		return Row{}, nil, fmt.Errorf("failed to encode %s: %w", schema.ExtraColumn, err)
	}
	row.Columns = append(row.Columns, schema.ExtraColumn)
	row.Values = append(row.Values, string(extra))

	return row, junctions, nil
}

func composeJunctions(table *schema.TableDefinition, doc *document.Document, ownerID *string) ([]JunctionRow, error) {
	if len(table.ManyOn) == 0 {
		return nil, nil
	}
	if ownerID == nil {
		return nil, fmt.Errorf("document has no %s, junction rows cannot be keyed", table.PrimaryKey())
	}

	var rows []JunctionRow
	for _, m := range table.ManyOn {
		junction := table.Junction(m)

		var items []json.RawMessage
		if raw, ok := doc.Get(m.ArrayField); ok && !document.IsNull(raw) {
			var err error
			items, err = document.Array(raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", m.ArrayField, err)
			}
		}

		// A repeated pair is stored once; two different pairs sharing an id
		// would overwrite each other.
		seen := make(map[string]JunctionKey, len(items)+1)
		add := func(key JunctionKey) error {
			if prev, ok := seen[key.ID()]; ok {
				if prev.Equal(key) {
					return nil
				}
				return fmt.Errorf("junction id %q of %s is ambiguous: derived from both %s and %s",
					key.ID(), junction.Name, prev, key)
			}
			seen[key.ID()] = key
			rows = append(rows, JunctionRow{Junction: junction, Key: key})
			return nil
		}

		if len(items) == 0 {
			if err := add(JunctionKey{OwnerID: *ownerID}); err != nil {
				return nil, err
			}
			continue
		}

		for i, item := range items {
			sub, err := document.Parse(item)
			if err != nil {
				return nil, fmt.Errorf("field %s[%d]: %w", m.ArrayField, i, err)
			}

			key := JunctionKey{OwnerID: *ownerID}
			if inner, ok := sub.Get(m.InnerKey); ok && !document.IsNull(inner) {
				referenced, err := document.ScalarString(inner)
				if err != nil {
					return nil, fmt.Errorf("field %s[%d].%s: %w", m.ArrayField, i, m.InnerKey, err)
				}
				key.ReferencedID = &referenced
			}

			if err := add(key); err != nil {
				return nil, fmt.Errorf("field %s[%d]: %w", m.ArrayField, i, err)
			}
		}
	}
	return rows, nil
}

// DecomposeRow rebuilds a document from a row of table. The extra column is
// merged back field by field, keeping each stored JSON value as it is.
// INTEGER and REAL values are emitted as JSON numbers, not as their text.
func DecomposeRow(table *schema.TableDefinition, columns []string, values []interface{}) (*document.Document, error) {
	doc := document.New()
	for i, col := range columns {
		value := values[i]

		if col == schema.ExtraColumn {
			text, ok := value.(string)
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			extra, err := document.Parse([]byte(text))
			if err != nil {
				return nil, fmt.Errorf("column %s is not a JSON object: %w", schema.ExtraColumn, err)
			}
			doc.Merge(extra)
			continue
		}

		sqlType, _ := table.ColumnType(col)
		var (
			out interface{}
			err error
		)
		if schema.IsBoolean(sqlType) {
			out, err = storedBool(value)
		} else {
			out, err = storedScalar(value)
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		if err := doc.SetValue(col, out); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func storedBool(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
		return nil, fmt.Errorf("stored value %q is not a boolean", v)
	default:
		return nil, fmt.Errorf("unexpected stored type %T for boolean column", value)
	}
}

func storedScalar(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil, string, int64, float64, bool:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	default:
		return nil, fmt.Errorf("unexpected stored type %T", value)
	}
}
