package format

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

type TableFormatter struct {
	colors bool
}

func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case KV:
		table := f.newTable(w)
		table.SetHeader([]string{"Property", "Value"})
		f.colorHeader(table, 2)
		for _, p := range v {
			table.Append([]string{p.Key, p.Value})
		}
		table.Render()
		return nil
	case Table:
		if len(v.Rows) == 0 {
			_, err := fmt.Fprintln(w, "No data to display")
			return err
		}
		table := f.newTable(w)
		table.SetHeader(v.Header)
		f.colorHeader(table, len(v.Header))
		table.AppendBulk(v.Rows)
		table.Render()
		return nil
	case []string:
		for _, line := range v {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	default:
		// Anything without a tabular shape is shown as YAML.
		out, err := yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	}
}

func (f *TableFormatter) newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

// colorHeader must follow SetHeader; tablewriter wants one entry per column.
func (f *TableFormatter) colorHeader(table *tablewriter.Table, columns int) {
	if !f.colors || columns == 0 {
		return
	}
	colors := make([]tablewriter.Colors, columns)
	for i := range colors {
		colors[i] = tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiBlueColor}
	}
	table.SetHeaderColor(colors...)
}
