package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/docbridge/internal/document"
	"github.com/kadirbelkuyu/docbridge/internal/failure"
)

type FieldKind int

const (
	FieldColumn FieldKind = iota
	FieldSimpleRef
	FieldManyRef
)

// FieldSpec is the typed form of one field descriptor of the configuration.
type FieldSpec struct {
	Name         string
	Kind         FieldKind
	Type         string
	PK           bool
	References   string
	ReferencesOn string
	ManyOn       string
}

type TableSpec struct {
	Name   string
	Fields []FieldSpec
}

type jsonDescriptor struct {
	Type         *string         `json:"type"`
	PK           *bool           `json:"pk"`
	References   *string         `json:"references"`
	ReferencesOn *string         `json:"referencesOn"`
	ManyOn       json.RawMessage `json:"manyOn"`
}

type yamlDescriptor struct {
	Type         *string    `yaml:"type"`
	PK           *bool      `yaml:"pk"`
	References   *string    `yaml:"references"`
	ReferencesOn *string    `yaml:"referencesOn"`
	ManyOn       *yaml.Node `yaml:"manyOn"`
}

// Load reads the schema configuration from path, or from inline when path is
// empty. Files ending in .yaml or .yml are parsed as YAML, everything else as
// JSON.
func Load(path, inline string) (*Schema, error) {
	switch {
	case strings.TrimSpace(path) != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, failure.Config(fmt.Errorf("failed to read schema config: %w", err))
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			return ParseYAML(data)
		}
		return ParseJSON(data)
	case strings.TrimSpace(inline) != "":
		return ParseJSON([]byte(inline))
	default:
		return nil, failure.Configf("no schema configuration supplied")
	}
}

func ParseJSON(data []byte) (*Schema, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, failure.Configf("schema configuration is empty")
	}

	root, err := document.Parse(data)
	if err != nil {
		return nil, failure.Config(fmt.Errorf("failed to parse schema config: %w", err))
	}

	specs := make([]TableSpec, 0, root.Len())
	for _, tableName := range root.Keys() {
		raw, _ := root.Get(tableName)
		fieldsDoc, err := document.Parse(raw)
		if err != nil {
			return nil, failure.Config(fmt.Errorf("table %s: fields must be an object: %w", tableName, err))
		}

		spec := TableSpec{Name: tableName}
		for _, fieldName := range fieldsDoc.Keys() {
			rawField, _ := fieldsDoc.Get(fieldName)
			var desc jsonDescriptor
			if err := json.Unmarshal(rawField, &desc); err != nil {
				return nil, failure.Config(fmt.Errorf("table %s, field %s: %w", tableName, fieldName, err))
			}

			manyOn, hasManyOn, err := jsonToken(desc.ManyOn)
			if err != nil {
				return nil, failure.Config(fmt.Errorf("table %s, field %s: manyOn: %w", tableName, fieldName, err))
			}

			field, err := newFieldSpec(fieldName, desc.Type, desc.PK, desc.References, desc.ReferencesOn, manyOn, hasManyOn)
			if err != nil {
				return nil, failure.Config(fmt.Errorf("table %s: %w", tableName, err))
			}
			spec.Fields = append(spec.Fields, field)
		}
		specs = append(specs, spec)
	}

	return Build(specs)
}

func ParseYAML(data []byte) (*Schema, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, failure.Configf("schema configuration is empty")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, failure.Config(fmt.Errorf("failed to parse schema config: %w", err))
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, failure.Configf("schema config must be a mapping of table names")
	}

	tables := root.Content[0]
	specs := make([]TableSpec, 0, len(tables.Content)/2)
	for i := 0; i+1 < len(tables.Content); i += 2 {
		tableName := tables.Content[i].Value
		fields := tables.Content[i+1]
		if fields.Kind != yaml.MappingNode {
			return nil, failure.Configf("table %s: fields must be a mapping", tableName)
		}

		spec := TableSpec{Name: tableName}
		for j := 0; j+1 < len(fields.Content); j += 2 {
			fieldName := fields.Content[j].Value
			var desc yamlDescriptor
			if err := fields.Content[j+1].Decode(&desc); err != nil {
				return nil, failure.Config(fmt.Errorf("table %s, field %s: %w", tableName, fieldName, err))
			}

			var manyOn string
			hasManyOn := desc.ManyOn != nil && desc.ManyOn.Tag != "!!null"
			if hasManyOn {
				if desc.ManyOn.Kind != yaml.ScalarNode {
					return nil, failure.Configf("table %s, field %s: manyOn must be a scalar", tableName, fieldName)
				}
				manyOn = desc.ManyOn.Value
			}

			field, err := newFieldSpec(fieldName, desc.Type, desc.PK, desc.References, desc.ReferencesOn, manyOn, hasManyOn)
			if err != nil {
				return nil, failure.Config(fmt.Errorf("table %s: %w", tableName, err))
			}
			spec.Fields = append(spec.Fields, field)
		}
		specs = append(specs, spec)
	}

	return Build(specs)
}

func jsonToken(raw json.RawMessage) (string, bool, error) {
	if document.IsNull(raw) {
		return "", false, nil
	}
	s, err := document.ScalarString(raw)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func newFieldSpec(name string, typ *string, pk *bool, references, referencesOn *string, manyOn string, hasManyOn bool) (FieldSpec, error) {
	field := FieldSpec{Name: name}
	if typ != nil {
		field.Type = strings.TrimSpace(*typ)
	}
	if pk != nil {
		field.PK = *pk
	}
	if referencesOn != nil {
		field.ReferencesOn = *referencesOn
	}

	switch {
	case references == nil:
		field.Kind = FieldColumn
		if field.Type == "" {
			return FieldSpec{}, fmt.Errorf("field %s: type is required", name)
		}
	case !hasManyOn:
		field.Kind = FieldSimpleRef
		field.References = *references
	default:
		field.Kind = FieldManyRef
		field.References = *references
		field.ManyOn = manyOn
	}

	if field.Kind != FieldColumn && strings.TrimSpace(field.References) == "" {
		return FieldSpec{}, fmt.Errorf("field %s: references must name a table", name)
	}
	return field, nil
}

// Build validates the typed configuration and assembles the Schema.
func Build(specs []TableSpec) (*Schema, error) {
	if len(specs) == 0 {
		return nil, failure.Configf("schema not initialized: configuration declares no tables")
	}

	s := &Schema{byName: make(map[string]*TableDefinition, len(specs))}
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, failure.Configf("table name cannot be empty")
		}
		if _, exists := s.byName[spec.Name]; exists {
			return nil, failure.Configf("table %s is declared twice", spec.Name)
		}

		table, err := buildTable(spec)
		if err != nil {
			return nil, failure.Config(fmt.Errorf("table %s: %w", spec.Name, err))
		}
		s.tables = append(s.tables, table)
		s.byName[table.Name] = table
	}

	if err := checkJunctionNames(s); err != nil {
		return nil, failure.Config(err)
	}
	return s, nil
}

func buildTable(spec TableSpec) (*TableDefinition, error) {
	table := &TableDefinition{Name: spec.Name}
	seen := make(map[string]bool, len(spec.Fields))
	hasPK := false

	for _, field := range spec.Fields {
		if field.Name == ExtraColumn {
			return nil, fmt.Errorf("field %s is reserved", ExtraColumn)
		}
		if seen[field.Name] {
			return nil, fmt.Errorf("field %s is declared twice", field.Name)
		}
		seen[field.Name] = true

		switch field.Kind {
		case FieldColumn:
			if sqlType, inline := splitPrimaryKey(field.Type); inline {
				if sqlType == "" {
					return nil, fmt.Errorf("field %s: type is required", field.Name)
				}
				field.Type = sqlType
				field.PK = true
			}
			if field.PK {
				if hasPK {
					return nil, fmt.Errorf("more than one primary key declared")
				}
				hasPK = true
			}
			table.Columns = append(table.Columns, ColumnDefinition{
				Name:       field.Name,
				SQLType:    field.Type,
				PrimaryKey: field.PK,
			})
		case FieldSimpleRef:
			table.Constraints = append(table.Constraints, SimpleConstraint{
				Column:           field.Name,
				SQLType:          orDefault(field.Type, DefaultReferenceType),
				ReferencedTable:  field.References,
				ReferencedColumn: orDefault(field.ReferencesOn, DefaultReferenceColumn),
			})
		case FieldManyRef:
			arrayField, innerKey, ok := strings.Cut(field.Name, "_")
			if !ok || arrayField == "" || innerKey == "" {
				return nil, fmt.Errorf("many-on field %s must be named <arrayField>_<innerKey>", field.Name)
			}
			table.ManyOn = append(table.ManyOn, ManyOnConstraint{
				Key:              field.Name,
				ArrayField:       arrayField,
				InnerKey:         innerKey,
				ReferencedTable:  field.References,
				ReferencedColumn: orDefault(field.ReferencesOn, DefaultReferenceColumn),
				Discriminator:    field.ManyOn,
			})
		}
	}

	sortColumns(table.Columns)
	sort.Slice(table.Constraints, func(i, j int) bool {
		return table.Constraints[i].Column < table.Constraints[j].Column
	})
	sort.Slice(table.ManyOn, func(i, j int) bool {
		return table.ManyOn[i].Key < table.ManyOn[j].Key
	})
	return table, nil
}

func checkJunctionNames(s *Schema) error {
	owners := make(map[string]string)
	for _, table := range s.tables {
		for _, m := range table.ManyOn {
			junction := table.Junction(m)
			if junction.OwnerColumn == junction.ReferencedColumn {
				return fmt.Errorf("table %s: many-on field %s cannot reference its own table", table.Name, m.Key)
			}
			if _, clash := s.byName[junction.Name]; clash {
				return fmt.Errorf("table %s: junction table %s clashes with a declared table", table.Name, junction.Name)
			}
			if other, clash := owners[junction.Name]; clash {
				return fmt.Errorf("table %s: junction table %s is already derived from %s", table.Name, junction.Name, other)
			}
			owners[junction.Name] = table.Name + "." + m.Key
		}
	}
	return nil
}

// splitPrimaryKey strips a trailing PRIMARY KEY from a column type, so the
// key is declared once whether it came from pk or from the type itself.
func splitPrimaryKey(sqlType string) (string, bool) {
	fields := strings.Fields(sqlType)
	n := len(fields)
	if n < 2 || !strings.EqualFold(fields[n-2], "PRIMARY") || !strings.EqualFold(fields[n-1], "KEY") {
		return sqlType, false
	}
	return strings.Join(fields[:n-2], " "), true
}

func sortColumns(columns []ColumnDefinition) {
	sort.Slice(columns, func(i, j int) bool {
		return columns[i].Name < columns[j].Name
	})
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
