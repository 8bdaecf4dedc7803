package format

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mfareport/cli/internal/config"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data interface{}) error
}

// Tabular is implemented by data that renders as rows
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

var output io.Writer = os.Stdout

// SetOutput redirects formatter and printer output. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := output
	output = w
	return prev
}

// GetFormatter returns a formatter based on the specified format
func GetFormatter(format string, w io.Writer) (Formatter, error) {
	cfg := config.Get()
	useColors := cfg.Format.Colors

	switch format {
	case "table":
		return NewTableFormatter(w, useColors), nil
	case "json":
		return NewJSONFormatter(w, true), nil
	case "json-compact":
		return NewJSONFormatter(w, false), nil
	case "yaml":
		return NewYAMLFormatter(w), nil
	case "text":
		return NewTextFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Print formats and prints data using the configured output format
func Print(data interface{}) error {
	formatter, err := GetFormatter(config.GetOutputFormat(), output)
	if err != nil {
		return err
	}
	return formatter.Format(data)
}

func printColored(c *color.Color, prefix, message string, args ...interface{}) {
	if config.Get().Format.Colors {
		c.Fprintf(output, message+"\n", args...)
		return
	}
	fmt.Fprintf(output, prefix+message+"\n", args...)
}

// PrintSuccess prints a success message
func PrintSuccess(message string, args ...interface{}) {
	printColored(color.New(color.FgGreen), "", message, args...)
}

// PrintError prints an error message
func PrintError(message string, args ...interface{}) {
	printColored(color.New(color.FgRed), "Error: ", message, args...)
}

// PrintWarning prints a warning message
func PrintWarning(message string, args ...interface{}) {
	printColored(color.New(color.FgYellow), "Warning: ", message, args...)
}

// PrintInfo prints an info message
func PrintInfo(message string, args ...interface{}) {
	printColored(color.New(color.FgBlue), "Info: ", message, args...)
}

// PrintDebug prints a debug message if debug mode is enabled
func PrintDebug(message string, args ...interface{}) {
	if config.IsDebug() {
		printColored(color.New(color.FgCyan), "", "[DEBUG] "+message, args...)
	}
}
