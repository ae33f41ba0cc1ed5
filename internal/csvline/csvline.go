package csvline

import "strings"

// Parse splits one line of comma-delimited text into fields. Quoted fields
// may contain commas and doubled quotes. An unterminated quote swallows the
// rest of the line instead of failing.
func Parse(line string) []string {
	fields := make([]string, 0, 8)
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	fields = append(fields, current.String())

	for i, field := range fields {
		fields[i] = cleanField(field)
	}
	return fields
}

// Rows splits a whole document into parsed rows, dropping carriage returns
// and blank lines.
func Rows(text string) [][]string {
	lines := strings.Split(text, "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		line = strings.ReplaceAll(line, "\r", "")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, Parse(line))
	}
	return rows
}

func cleanField(field string) string {
	field = strings.TrimSpace(field)
	field = strings.TrimPrefix(field, `"`)
	return strings.TrimSuffix(field, `"`)
}
