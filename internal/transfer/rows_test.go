package transfer_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/docbridge/internal/document"
	"github.com/kadirbelkuyu/docbridge/internal/schema"
	"github.com/kadirbelkuyu/docbridge/internal/transfer"
)

const personConfig = `{
  "person": {
    "_id": {"type": "VARCHAR(100)", "pk": true},
    "addresses_locationId": {"type": "VARCHAR(100)", "references": "location", "referencesOn": "_id", "manyOn": "_id"}
  }
}`

const clusterConfig = `{
  "cluster": {
    "_id": {"type": "VARCHAR(100)", "pk": true},
    "name": {"type": "VARCHAR(100)"},
    "updatedAt": {"type": "DATE"},
    "deleted": {"type": "BOOLEAN"},
    "size": {"type": "INT"},
    "outbreakId": {"type": "VARCHAR(100)", "references": "outbreak", "referencesOn": "_id"}
  },
  "outbreak": {
    "_id": {"type": "VARCHAR(100)", "pk": true},
    "name": {"type": "VARCHAR(100)"}
  }
}`

func mustTable(t *testing.T, config, name string) *schema.TableDefinition {
	t.Helper()
	s, err := schema.ParseJSON([]byte(config))
	require.NoError(t, err)
	table, ok := s.Table(name)
	require.True(t, ok)
	return table
}

func mustDoc(t *testing.T, raw string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

func junctionIDs(rows []transfer.JunctionRow) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Key.ID())
	}
	return ids
}

func TestComposeRowManyOnExample(t *testing.T) {
	table := mustTable(t, personConfig, "person")

	row, junctions, err := transfer.ComposeRow(table, mustDoc(t, `{"_id":"p1","addresses":[{"locationId":"loc1"}]}`))
	require.NoError(t, err)

	assert.Equal(t, "person", row.Table)
	assert.Equal(t, []string{"_id", "extra"}, row.Columns)
	assert.Equal(t, []interface{}{"p1", `{"addresses":[{"locationId":"loc1"}]}`}, row.Values)

	require.Len(t, junctions, 1)
	assert.Equal(t, transfer.Row{
		Table:   "person_location",
		Columns: []string{"_id", "locationId", "personId"},
		Values:  []interface{}{"p1loc1", "loc1", "p1"},
	}, junctions[0].Row())
}

func TestComposeRowTwoReferences(t *testing.T) {
	table := mustTable(t, personConfig, "person")

	_, junctions, err := transfer.ComposeRow(table, mustDoc(t,
		`{"_id":"p1","addresses":[{"locationId":"loc1","typeId":"home"},{"locationId":"loc2"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1loc1", "p1loc2"}, junctionIDs(junctions))
}

func TestComposeRowWithoutReferences(t *testing.T) {
	table := mustTable(t, personConfig, "person")

	for name, raw := range map[string]string{
		"empty array":    `{"_id":"p1","addresses":[]}`,
		"absent array":   `{"_id":"p1"}`,
		"null array":     `{"_id":"p1","addresses":null}`,
		"null inner key": `{"_id":"p1","addresses":[{"locationId":null},{"other":1}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, junctions, err := transfer.ComposeRow(table, mustDoc(t, raw))
			require.NoError(t, err)
			require.Len(t, junctions, 1)

			row := junctions[0].Row()
			assert.Equal(t, []interface{}{"p1", nil, "p1"}, row.Values)
		})
	}
}

func TestComposeRowCollapsesRepeatedReferences(t *testing.T) {
	table := mustTable(t, personConfig, "person")

	_, junctions, err := transfer.ComposeRow(table, mustDoc(t,
		`{"_id":"p1","addresses":[{"locationId":"loc1"},{"locationId":"loc1","typeId":"work"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1loc1"}, junctionIDs(junctions))
}

func TestComposeRowRejectsCollidingReferences(t *testing.T) {
	table := mustTable(t, personConfig, "person")

	for name, raw := range map[string]string{
		"empty and missing reference": `{"_id":"p1","addresses":[{"locationId":""},{}]}`,
		"missing and empty reference": `{"_id":"p1","addresses":[{"locationId":null},{"locationId":""}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := transfer.ComposeRow(table, mustDoc(t, raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "ambiguous")
		})
	}
}

func TestComposeRowMapsColumns(t *testing.T) {
	table := mustTable(t, clusterConfig, "cluster")

	row, junctions, err := transfer.ComposeRow(table, mustDoc(t,
		`{"_id":"c1","deleted":"true","size":12,"outbreakId":"o1","updatedAt":null,"tags":["a","b"],"meta":{"v":1.50}}`))
	require.NoError(t, err)
	assert.Empty(t, junctions)

	values := make(map[string]interface{})
	for i, col := range row.Columns {
		values[col] = row.Values[i]
	}

	assert.Equal(t, "c1", values["_id"])
	assert.Equal(t, true, values["deleted"])
	assert.Equal(t, "12", values["size"])
	assert.Equal(t, "o1", values["outbreakId"], "constraint columns are mapped like plain columns")
	assert.Nil(t, values["updatedAt"])
	assert.Nil(t, values["name"], "missing fields become NULL")
	assert.Equal(t, `{"tags":["a","b"],"meta":{"v":1.50}}`, values["extra"],
		"only unmapped fields reach extra, missing and null columns leave no key behind")
}

func TestComposeRowRejectsBadValues(t *testing.T) {
	cluster := mustTable(t, clusterConfig, "cluster")
	person := mustTable(t, personConfig, "person")

	cases := []struct {
		name  string
		table *schema.TableDefinition
		raw   string
	}{
		{"non boolean", cluster, `{"_id":"c1","deleted":"maybe"}`},
		{"object in scalar column", cluster, `{"_id":"c1","name":{"first":"x"}}`},
		{"array field not an array", person, `{"_id":"p1","addresses":{"locationId":"loc1"}}`},
		{"sub-object not an object", person, `{"_id":"p1","addresses":["loc1"]}`},
		{"owner without id", person, `{"addresses":[{"locationId":"loc1"}]}`},
		{"inner key is an object", person, `{"_id":"p1","addresses":[{"locationId":{"$oid":"x"}}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := transfer.ComposeRow(tc.table, mustDoc(t, tc.raw))
			require.Error(t, err)
		})
	}
}

func TestDecomposeRowRestoresDocument(t *testing.T) {
	table := mustTable(t, clusterConfig, "cluster")

	columns := []string{"_id", "deleted", "name", "outbreakId", "size", "updatedAt", "extra"}
	values := []interface{}{"c1", int64(1), nil, "o1", int64(12), "2019-02-01T00:00:00.000Z", `{"tags":["a"],"meta":{"v":1.50},"note":null,"n":3}`}

	doc, err := transfer.DecomposeRow(table, columns, values)
	require.NoError(t, err)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"_id":"c1","deleted":true,"name":null,"outbreakId":"o1","size":12,"updatedAt":"2019-02-01T00:00:00.000Z","tags":["a"],"meta":{"v":1.50},"note":null,"n":3}`,
		string(out))
}

func TestDecomposeRowBooleanForms(t *testing.T) {
	table := mustTable(t, clusterConfig, "cluster")

	for stored, want := range map[interface{}]interface{}{
		true:     true,
		int64(0): false,
		"1":      true,
		nil:      nil,
	} {
		doc, err := transfer.DecomposeRow(table, []string{"deleted"}, []interface{}{stored})
		require.NoError(t, err)
		raw, _ := doc.Get("deleted")
		expected, _ := json.Marshal(want)
		assert.JSONEq(t, string(expected), string(raw))
	}

	_, err := transfer.DecomposeRow(table, []string{"extra"}, []interface{}{"[1,2]"})
	require.Error(t, err, "extra must hold an object")
}

func TestJunctionKeyIdentity(t *testing.T) {
	loc := "2loc"
	other := "loc"
	a := transfer.JunctionKey{OwnerID: "p1", ReferencedID: &loc}
	b := transfer.JunctionKey{OwnerID: "p12", ReferencedID: &other}

	assert.Equal(t, a.ID(), b.ID(), "concatenation alone is ambiguous")
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(transfer.JunctionKey{OwnerID: "p1", ReferencedID: &loc}))
	assert.False(t, a.Equal(transfer.JunctionKey{OwnerID: "p1"}))
	assert.Equal(t, "p1", transfer.JunctionKey{OwnerID: "p1"}.ID())
}
