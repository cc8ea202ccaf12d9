// Package format renders CLI results as tables, JSON or YAML.
package format

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Formatter writes data to w.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// Pair is one row of a key/value listing.
type Pair struct {
	Key   string
	Value string
}

// KV is an ordered key/value listing. Tables keep the order; JSON and YAML
// render it as an object.
type KV []Pair

func (kv KV) Map() map[string]string {
	out := make(map[string]string, len(kv))
	for _, p := range kv {
		out[p.Key] = p.Value
	}
	return out
}

// Table is a headed grid. JSON and YAML render it as a list of objects.
type Table struct {
	Header []string
	Rows   [][]string
}

func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// New returns the formatter for name: table, json, json-compact or yaml.
func New(name string, colors bool) (Formatter, error) {
	switch name {
	case "", "table":
		return &TableFormatter{colors: colors}, nil
	case "json":
		return &JSONFormatter{pretty: true}, nil
	case "json-compact":
		return &JSONFormatter{}, nil
	case "yaml":
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", name)
	}
}

// plain converts KV and Table to their structured forms.
func plain(data any) any {
	switch v := data.(type) {
	case KV:
		return v.Map()
	case Table:
		return v.Records()
	default:
		return data
	}
}

func Success(w io.Writer, msg string, args ...any) {
	_, _ = color.New(color.FgGreen).Fprintf(w, msg+"\n", args...)
}

func Warning(w io.Writer, msg string, args ...any) {
	_, _ = color.New(color.FgYellow).Fprintf(w, "warning: "+msg+"\n", args...)
}

func Failure(w io.Writer, msg string, args ...any) {
	_, _ = color.New(color.FgRed).Fprintf(w, "error: "+msg+"\n", args...)
}
