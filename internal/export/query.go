package export

import (
	"fmt"
	"strings"
)

// quoteIdent quotes a single SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteQualified quotes a possibly dotted name ("meta.entities") part by part.
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// tableRef is the resolved schema plus a table name.
func tableRef(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func lookupQuery(d Dialect, s Settings) string {
	return fmt.Sprintf("SELECT CAST(%s AS TEXT) FROM %s WHERE %s = %s LIMIT 1",
		quoteIdent(s.LookupCodeColumn),
		quoteQualified(s.LookupTable),
		quoteIdent(s.LookupNameColumn),
		d.Placeholder(1),
	)
}

func countQuery(schema, table string) string {
	return fmt.Sprintf("SELECT CAST(COUNT(*) AS TEXT) FROM %s", tableRef(schema, table))
}

// pageQuery selects one offset window. Rows come back in the store's
// natural order; no ORDER BY is added.
func pageQuery(c Contract, schema, table string, limit, offset int64) string {
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d OFFSET %d",
		c.SelectList(), tableRef(schema, table), limit, offset)
}

func fullQuery(c Contract, schema, table string) string {
	return fmt.Sprintf("SELECT %s FROM %s", c.SelectList(), tableRef(schema, table))
}
