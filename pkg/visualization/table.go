package visualization

import (
	"os"

	"github.com/olekukonko/tablewriter"
)

// Table is a model for data.
type Table struct {
	headers []string
	data    [][]string
}

// NewTable creates new model of data representation.
func NewTable(headers []string, data [][]string) *Table {
	return &Table{
		headers,
		data,
	}
}

// DrawTable draws a struct with headers and data rows.
func DrawTable(table *Table) {
	output := tablewriter.NewWriter(os.Stdout)
	output.SetHeader(table.headers)
	for _, row := range table.data {
		output.Append(row)
	}
	output.Render()
}
