package cli

import (
	"database/sql"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/hugr-lab/manageql/engine"
)

// writeRows prints a result set as a tab-aligned table or as a JSON array
// of row objects.
func writeRows(w io.Writer, format string, rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	var records [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		records = append(records, vals)
	}
	if err := rows.Err(); err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}

	if format == "json" {
		objs := make([]map[string]any, len(records))
		for i, rec := range records {
			obj := make(map[string]any, len(cols))
			for j, c := range cols {
				obj[c] = jsonCell(rec[j])
			}
			objs[i] = obj
		}
		return writeJSON(w, objs)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, rec := range records {
		cells := make([]string, len(rec))
		for i, v := range rec {
			cells[i] = textCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d rows)\n", len(records))
	return nil
}

// writePlans prints the result of engine.Explain.
func writePlans(w io.Writer, format string, plans []engine.Plan) error {
	if format == "json" {
		if plans == nil {
			plans = []engine.Plan{}
		}
		return writeJSON(w, plans)
	}
	if len(plans) == 0 {
		fmt.Fprintln(w, "no management tables read")
		return nil
	}
	for _, p := range plans {
		fmt.Fprintf(w, "table %s (objects %s)\n", p.Table, p.NameInSource)
		for _, c := range p.Columns {
			fmt.Fprintf(w, "  %s %s\n", c.Name, c.Type)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func textCell(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case string:
		return t
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

func jsonCell(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
