package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"msgsort/internal/clix"
	"msgsort/internal/inputprocessor"
	"msgsort/internal/services"
	"msgsort/pkg/categorizer"
)

var (
	categoryKeywords string
	exportFormat     string
	exportOutput     string
	importFormat     string

	nowFunc = time.Now
)

// categoryCmd represents the base command for category management.
var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"categories", "cat"},
	Short:   "Manage categories and their keywords",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name> [keyword, keyword...]",
	Short: "Create a category",
	Long: `Creates a category with a comma separated keyword list, e.g.

  msgsort category add trabajo --keywords "reunion, oficina, proyecto"
  msgsort category add trabajo reunion, oficina, proyecto

Names may contain letters, digits, '_' and '-' and are compared case-insensitively.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keywords, err := clix.ParseKeywords(cmd.Flags(), args[1:])
		if err != nil {
			return err
		}

		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cat, err := appInstance.CategoryService.AddCategory(cmd.Context(), args[0], keywords)
		if err != nil {
			return fmt.Errorf("failed to add category: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Category '%s' created.", cat.Name))
		fmt.Fprintf(cmd.OutOrStdout(), "Keywords: %s\n", strings.Join(cat.Keywords, ", "))
		return nil
	},
}

var categoryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cats, err := appInstance.CategoryService.ListCategories(cmd.Context())
		if err != nil {
			return err
		}
		if len(cats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No categories configured.")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Name", "Keywords"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, c := range cats {
			table.Append([]string{c.Name, strings.Join(c.Keywords, ", ")})
		}
		table.Render()
		return nil
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a category",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := appInstance.CategoryService.DeleteCategory(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Category '%s' deleted.", categorizer.NormalizeName(args[0])))
		return nil
	},
}

var categoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export categories as CSV or XLSX",
	Long: `Writes every category as a two column table (name, keywords). Without
--output the file is named categories_YYYYMMDD_HHMMSS.<format> in the current
directory; --output - writes to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := clix.ParseExportFormat(cmd.Flags(), exportOutput)
		if err != nil {
			return err
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if exportOutput == "-" {
			return appInstance.ExportService.Export(cmd.Context(), cmd.OutOrStdout(), format)
		}
		path := exportOutput
		if path == "" {
			path = services.ExportFileName(nowFunc(), format)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		if err := appInstance.ExportService.Export(cmd.Context(), f, format); err != nil {
			f.Close()
			return fmt.Errorf("failed to export categories: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write export file: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Exported %d categories to %s", appInstance.Registry.Len(), path))
		return nil
	},
}

var categoryImportCmd = &cobra.Command{
	Use:   "import <file|url>",
	Short: "Import categories from a CSV or XLSX export",
	Long: `Creates every category listed in the file, which may be a local path or an
http(s) URL. Categories that already exist or fail validation are skipped and
reported; the rest are imported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		format, body, err := readCategoryInput(cmd, args[0])
		if err != nil {
			return err
		}

		report, err := appInstance.ExportService.Import(cmd.Context(), bytes.NewReader(body), format)
		if err != nil {
			return fmt.Errorf("failed to import categories: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("Imported %d categories.", len(report.Added)))
		if len(report.Skipped) > 0 {
			fmt.Fprintln(out, color.YellowString("Skipped %d:", len(report.Skipped)))
			for _, name := range sortedKeys(report.Skipped) {
				fmt.Fprintf(out, "  %s: %s\n", name, report.Skipped[name])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoryCmd)
	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd, categoryDeleteCmd, categoryExportCmd, categoryImportCmd)

	categoryAddCmd.Flags().StringVarP(&categoryKeywords, "keywords", "k", "", "Comma separated keywords")
	categoryExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Export format: csv or xlsx (default from --output extension, else csv)")
	categoryExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, or - for stdout")
	categoryImportCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Import format: csv or xlsx (default from the file extension)")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// readCategoryInput loads a category export from a path or URL and decides
// its format.
func readCategoryInput(cmd *cobra.Command, input string) (services.ExportFormat, []byte, error) {
	res, err := inputprocessor.New(nil).Process(cmd.Context(), input)
	if err != nil {
		return "", nil, err
	}
	format, err := clix.ParseImportFormat(cmd.Flags(), res.Name, res.ContentType)
	if err != nil {
		return "", nil, err
	}
	return format, res.Body, nil
}
