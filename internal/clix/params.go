package clix

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"msgsort/internal/services"
	"msgsort/pkg/categorizer"
)

// ParseKeywords reads the comma separated "keywords" flag. Positional
// arguments after the category name are accepted too, so both
// `category add trabajo --keywords "reunion, oficina"` and
// `category add trabajo reunion, oficina` work.
func ParseKeywords(flags *pflag.FlagSet, args []string) ([]string, error) {
	raw, _ := flags.GetString("keywords")
	if raw == "" {
		raw = strings.Join(args, " ")
	}
	keywords := categorizer.SplitKeywords(raw, categorizer.KeywordSeparator)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required (use --keywords \"kw1, kw2\")")
	}
	return keywords, nil
}

// ParseExportFormat reads the "format" flag. When it is empty the format is
// taken from the extension of path, defaulting to CSV.
func ParseExportFormat(flags *pflag.FlagSet, path string) (services.ExportFormat, error) {
	format, _ := flags.GetString("format")
	if format == "" && path != "" && path != "-" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	return services.ParseExportFormat(format)
}

// ParseImportFormat is ParseExportFormat for loaded inputs: when neither the
// flag nor the name decides, a zip or spreadsheet content type selects XLSX.
func ParseImportFormat(flags *pflag.FlagSet, name, contentType string) (services.ExportFormat, error) {
	format, _ := flags.GetString("format")
	if format == "" && filepath.Ext(name) == "" &&
		(strings.Contains(contentType, "spreadsheetml") || strings.HasPrefix(contentType, "application/zip")) {
		return services.FormatXLSX, nil
	}
	return ParseExportFormat(flags, name)
}
