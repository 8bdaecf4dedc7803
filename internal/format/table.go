package format

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter handles table output formatting
type TableFormatter struct {
	w         io.Writer
	useColors bool
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer, useColors bool) *TableFormatter {
	return &TableFormatter{
		w:         w,
		useColors: useColors,
	}
}

// Format formats data as a table
func (f *TableFormatter) Format(data interface{}) error {
	if data == nil {
		_, err := fmt.Fprintln(f.w, "No data to display")
		return err
	}

	switch v := data.(type) {
	case Tabular:
		return f.render(v.Headers(), v.Rows())
	case map[string]interface{}:
		return f.formatSingleMap(v)
	default:
		_, err := fmt.Fprintf(f.w, "%v\n", data)
		return err
	}
}

func (f *TableFormatter) render(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(f.w, "No data to display")
		return err
	}

	table := tablewriter.NewWriter(f.w)
	table.SetHeader(headers)
	f.configureTable(table, len(headers))
	table.AppendBulk(rows)
	table.Render()
	return nil
}

// formatSingleMap formats a single map as a vertical table
func (f *TableFormatter) formatSingleMap(data map[string]interface{}) error {
	rows := make([][]string, 0, len(data))
	for _, key := range sortedKeys(data) {
		rows = append(rows, []string{formatHeader(key), f.formatValue(data[key])})
	}
	return f.render([]string{"Property", "Value"}, rows)
}

// configureTable sets up table appearance
func (f *TableFormatter) configureTable(table *tablewriter.Table, columns int) {
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	if f.useColors {
		colors := make([]tablewriter.Colors, columns)
		for i := range colors {
			colors[i] = tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiBlueColor}
		}
		table.SetHeaderColor(colors...)
	}
}

// formatValue formats a value for display
func (f *TableFormatter) formatValue(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if f.useColors {
			if v {
				return color.GreenString("true")
			}
			return color.RedString("false")
		}
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatHeader converts snake_case and camelCase keys to Title Case
func formatHeader(header string) string {
	var words []string
	for _, part := range strings.Split(header, "_") {
		start := 0
		for i := 1; i < len(part); i++ {
			if part[i] >= 'A' && part[i] <= 'Z' && part[i-1] >= 'a' && part[i-1] <= 'z' {
				words = append(words, part[start:i])
				start = i
			}
		}
		if start < len(part) {
			words = append(words, part[start:])
		}
	}
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
