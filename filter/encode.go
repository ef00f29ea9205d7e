package filter

import "strings"

// SQL quoting helpers shared by the SQL-emitting backends. Values are always
// bound as parameters; these helpers exist for identifiers and the rare
// literal a dialect cannot parameterize (e.g. WKT inside ST_GeomFromText on
// engines without geometry parameters).

// EscapeString escapes single quotes in a string value for SQL.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// QuoteLiteral returns a SQL string literal with proper escaping.
func QuoteLiteral(s string) string {
	return "'" + EscapeString(s) + "'"
}

// QuoteIdentifier returns a double-quoted identifier if quoting is needed.
func QuoteIdentifier(name string) string {
	if needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

func needsQuoting(name string) bool {
	if len(name) == 0 {
		return true
	}

	c := name[0]
	if !isLetterByte(c) && c != '_' {
		return true
	}
	for i := 1; i < len(name); i++ {
		c = name[i]
		if !isLetterByte(c) && !isDigitByte(c) && c != '_' {
			return true
		}
	}

	switch strings.ToUpper(name) {
	case "SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "NULL", "TRUE", "FALSE",
		"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TABLE", "INDEX",
		"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "ON", "AS", "IN", "IS", "LIKE",
		"BETWEEN", "EXISTS", "CASE", "WHEN", "THEN", "ELSE", "END", "ORDER", "BY",
		"GROUP", "HAVING", "LIMIT", "OFFSET", "UNION", "EXCEPT", "INTERSECT",
		"ALL", "DISTINCT", "VALUES", "SET", "INTO", "PRIMARY", "KEY", "FOREIGN",
		"REFERENCES", "CONSTRAINT", "DEFAULT", "CHECK", "UNIQUE", "ASC", "DESC",
		"NULLS", "FIRST", "LAST", "CAST", "INTERVAL", "DATE", "TIME", "TIMESTAMP":
		return true
	}

	return false
}
