// Package export writes a timesheet to CSV, JSON or YAML.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	YAML Format = "yaml"
)

// Formats lists the supported formats in menu order.
var Formats = []Format{CSV, JSON, YAML}

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// FileName is the default file name for sheet in format f.
func FileName(sheet Sheet, f Format) string {
	return fmt.Sprintf("timesheet_%s_%s.%s", sheet.From, sheet.To, f)
}

// Write exports sheet to path in format f.
func Write(sheet Sheet, f Format, path string) error {
	switch f {
	case CSV:
		return ToCSV(sheet, path)
	case JSON:
		return ToJSON(sheet, path)
	case YAML:
		return ToYAML(sheet, path)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// WriteTo exports sheet into dir under FileName and returns the path.
func WriteTo(sheet Sheet, f Format, dir string) (string, error) {
	path := filepath.Join(dir, FileName(sheet, f))
	if err := Write(sheet, f, path); err != nil {
		return "", err
	}
	return path, nil
}
