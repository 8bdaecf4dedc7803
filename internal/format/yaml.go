package format

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter handles YAML output formatting
type YAMLFormatter struct {
	w io.Writer
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(w io.Writer) *YAMLFormatter {
	return &YAMLFormatter{w: w}
}

// Format formats data as YAML
func (f *YAMLFormatter) Format(data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	_, err = fmt.Fprint(f.w, string(out))
	return err
}
