package executor

import (
	"strings"

	"github.com/quelldb/quell/internal/record"
)

// Result is a fully materialized query result.
type Result struct {
	Columns []string
	Rows    []record.Row
}

// String renders the result as an aligned text table, one row per line,
// with a header and separator. Cells carry each value's literal form:
// Integer(1), Float(8.2), String("x"), Boolean(true), and a bare Null.
// This rendering is the stable output contract; it never changes shape
// between releases.
func (r *Result) String() string {
	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(r.Rows))
	for ri, row := range r.Rows {
		cells[ri] = make([]string, len(row))
		for ci, v := range row {
			s := v.String()
			cells[ri][ci] = s
			if ci < len(widths) && len(s) > widths[ci] {
				widths[ci] = len(s)
			}
		}
	}

	var b strings.Builder
	writeLine := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(f)
			if pad := widths[i] - len(f); pad > 0 && i < len(fields)-1 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		b.WriteByte('\n')
	}

	writeLine(r.Columns)
	sep := make([]string, len(r.Columns))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeLine(sep)
	for _, row := range cells {
		writeLine(row)
	}
	return b.String()
}
