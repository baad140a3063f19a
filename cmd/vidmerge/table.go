package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rows under headers. Short rows are padded with blanks.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, columns))
	for _, row := range rows {
		tw.AppendRow(toRow(row, columns))
	}

	configs := make([]table.ColumnConfig, columns)
	for i := range configs {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render() + "\n"
}

func toRow(values []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
