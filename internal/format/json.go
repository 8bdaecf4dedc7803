package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter handles JSON output formatting
type JSONFormatter struct {
	w      io.Writer
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer, pretty bool) *JSONFormatter {
	return &JSONFormatter{
		w:      w,
		pretty: pretty,
	}
}

// Format formats data as JSON
func (f *JSONFormatter) Format(data interface{}) error {
	var out []byte
	var err error

	if f.pretty {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, err = fmt.Fprintln(f.w, string(out))
	return err
}
