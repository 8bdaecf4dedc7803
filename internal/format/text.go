package format

import (
	"fmt"
	"io"
)

// TextFormatter handles simple text output formatting
type TextFormatter struct {
	w io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{w: w}
}

// Format formats data as simple text
func (f *TextFormatter) Format(data interface{}) error {
	if data == nil {
		_, err := fmt.Fprintln(f.w, "No data")
		return err
	}

	switch v := data.(type) {
	case Tabular:
		return f.formatTabular(v)
	case map[string]interface{}:
		for _, key := range sortedKeys(v) {
			fmt.Fprintf(f.w, "%s: %v\n", formatHeader(key), formatTextValue(v[key]))
		}
		return nil
	case string:
		_, err := fmt.Fprint(f.w, v)
		return err
	default:
		_, err := fmt.Fprintf(f.w, "%v\n", data)
		return err
	}
}

// formatTabular prints one block per row
func (f *TextFormatter) formatTabular(t Tabular) error {
	rows := t.Rows()
	if len(rows) == 0 {
		_, err := fmt.Fprintln(f.w, "No data")
		return err
	}

	headers := t.Headers()
	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(f.w)
		}
		fmt.Fprintf(f.w, "Item %d:\n", i+1)
		for j, value := range row {
			if j < len(headers) {
				fmt.Fprintf(f.w, "  %s: %s\n", headers[j], value)
			}
		}
	}
	return nil
}

func formatTextValue(value interface{}) interface{} {
	if value == nil {
		return "N/A"
	}
	return value
}
