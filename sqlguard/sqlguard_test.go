package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gregoryerrl/pgtoolset/types"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		wantKind types.Kind
		wantOK   bool
	}{
		{"plain select", "SELECT * FROM customers", "", true},
		{"lowercase select", "select id from orders", "", true},
		{"leading whitespace", "   \n\tSELECT 1", "", true},
		{"cte select", "WITH t AS (SELECT 1) SELECT * FROM t", "", true},
		{"explain", "EXPLAIN SELECT * FROM orders", "", true},
		{"show", "SHOW server_version", "", true},
		{"trailing semicolon", "SELECT 1;", "", true},
		{"trailing semicolon and whitespace", "SELECT 1; \n", "", true},
		{"leading comment", "-- comment\nSELECT 1", "", true},
		{"leading block comment", "/* c */ SELECT 1", "", true},
		{"write keyword in string literal", "SELECT * FROM log WHERE msg = 'DROP TABLE x'", "", true},
		{"write keyword in column name", "SELECT created_at, update_count FROM t", "", true},
		{"write keyword in quoted identifier", `SELECT "update" FROM t`, "", true},
		{"write keyword in backtick identifier", "SELECT `delete` FROM t", "", true},

		{"insert", "INSERT INTO customers VALUES (1)", types.KindWritePolicy, false},
		{"update", "UPDATE customers SET name = 'x'", types.KindWritePolicy, false},
		{"delete", "DELETE FROM customers", types.KindWritePolicy, false},
		{"drop", "DROP TABLE customers", types.KindWritePolicy, false},
		{"alter", "ALTER TABLE customers ADD COLUMN x int", types.KindWritePolicy, false},
		{"truncate", "TRUNCATE customers", types.KindWritePolicy, false},
		{"grant", "GRANT ALL ON customers TO evil", types.KindWritePolicy, false},
		{"create", "CREATE TABLE x (id int)", types.KindWritePolicy, false},
		{"lowercase delete", "delete from customers", types.KindWritePolicy, false},
		{"comment-hidden delete", "/* hi */ DELETE FROM customers", types.KindWritePolicy, false},
		{"data-modifying cte", "WITH d AS (DELETE FROM t RETURNING *) SELECT * FROM d", types.KindWritePolicy, false},
		{"batch after semicolon", "SELECT 1; DROP TABLE customers", types.KindWritePolicy, false},
		{"select batch", "SELECT 1; SELECT 2", types.KindWritePolicy, false},
		{"unknown leading keyword", "VACUUM FULL", types.KindWritePolicy, false},
		{"set", "SET search_path = evil", types.KindWritePolicy, false},

		{"empty", "", types.KindQuery, false},
		{"only comment", "-- nothing here", types.KindQuery, false},
		{"only whitespace", "   \n  ", types.KindQuery, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.input)
			if tc.wantOK {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tc.wantKind, types.KindOf(err))
		})
	}
}

func TestStrip(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"line comment", "SELECT 1 -- DROP TABLE x", "SELECT 1 "},
		{"block comment", "SELECT /* DELETE */ 1", "SELECT  1"},
		{"nested block comment", "SELECT /* a /* b */ c */ 1", "SELECT  1"},
		{"string literal", "SELECT 'DROP TABLE x'", "SELECT ''"},
		{"escaped quote", "SELECT 'it''s a DELETE'", "SELECT ''"},
		{"dollar quoted", "SELECT $$DROP TABLE x$$", "SELECT ''"},
		{"tagged dollar quoted", "SELECT $fn$ DELETE $fn$", "SELECT ''"},
		{"positional params untouched", "SELECT * FROM t WHERE id = $1", "SELECT * FROM t WHERE id = $1"},
		{"quoted identifier", `SELECT "DROP" FROM t`, `SELECT "" FROM t`},
		{"escaped double quote", `SELECT "a""DELETE" FROM t`, `SELECT "" FROM t`},
		{"backtick identifier", "SELECT `TRUNCATE` FROM t", "SELECT `` FROM t"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Strip(tc.input))
		})
	}
}

func TestIsReadOnly(t *testing.T) {
	assert.True(t, IsReadOnly("SELECT 1"))
	assert.False(t, IsReadOnly("DELETE FROM t"))
}
