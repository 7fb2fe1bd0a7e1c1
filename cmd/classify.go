package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"msgsort/internal/admincmd"
	"msgsort/internal/config"
	"msgsort/internal/services"
	"msgsort/pkg/categorizer"
)

var (
	classifyExplain    bool
	classifyCategories string
	classifyFormat     string
)

// classifyCmd runs the categorizer without storing anything.
var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Categorize text without storing it",
	Long: `Prints the category a message would get. With no arguments every line of
stdin is classified. --explain shows how each category scored; --categories
classifies against a CSV or XLSX export (path or URL) instead of the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := classifierFor(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		ctx := cmd.Context()
		if len(args) > 0 {
			text := strings.Join(args, " ")
			res, err := ms.Classify(ctx, text)
			if err != nil {
				return err
			}
			printResult(out, res)
			if classifyExplain {
				scores, err := ms.Explain(ctx, text)
				if err != nil {
					return err
				}
				printScores(out, scores)
			}
			return nil
		}

		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Message", "Category", "Confidence", "Keyword", "Method"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			res, err := ms.Classify(ctx, line)
			if err != nil {
				return err
			}
			confidence := res.Confidence
			table.Append([]string{line, res.Category, admincmd.FormatConfidence(&confidence), res.MatchedKeyword, string(res.Method)})
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		table.Render()
		return nil
	},
}

// classifierFor returns the app's message service, or one built over the
// file named by --categories.
func classifierFor(cmd *cobra.Command) (*services.MessageService, error) {
	if classifyCategories == "" {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return nil, err
		}
		return appInstance.MessageService, nil
	}

	cfg, err := GetConfigFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	return fileClassifier(cmd, cfg)
}

func fileClassifier(cmd *cobra.Command, cfg *config.Config) (*services.MessageService, error) {
	format, body, err := readCategoryInput(cmd, classifyCategories)
	if err != nil {
		return nil, err
	}

	var cats []categorizer.Category
	if format == services.FormatXLSX {
		cats, err = services.ReadCategoriesXLSX(bytes.NewReader(body))
	} else {
		cats, err = services.ReadCategoriesCSV(bytes.NewReader(body))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}

	reg := categorizer.NewRegistry()
	if err := reg.Replace(cats); err != nil {
		return nil, fmt.Errorf("invalid categories file: %w", err)
	}
	c, err := categorizer.New(cfg.CategorizerConfig())
	if err != nil {
		return nil, err
	}
	cs := services.NewCategoryService(nil, reg, c.Config().DefaultCategory, nil)
	return services.NewMessageService(nil, cs, c, nil), nil
}

func printResult(out io.Writer, res categorizer.Result) {
	confidence := res.Confidence
	name := res.Category
	if res.Method == categorizer.MethodNone {
		name = color.YellowString(name)
	} else {
		name = color.GreenString(name)
	}
	fmt.Fprintf(out, "Category:   %s\n", name)
	fmt.Fprintf(out, "Confidence: %s\n", admincmd.FormatConfidence(&confidence))
	if res.MatchedKeyword != "" {
		fmt.Fprintf(out, "Keyword:    %s (%s)\n", res.MatchedKeyword, res.Method)
	}
}

func printScores(out io.Writer, scores []categorizer.CategoryScore) {
	if len(scores) == 0 {
		fmt.Fprintln(out, "No categories configured.")
		return
	}
	fmt.Fprintln(out)
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Category", "Score", "Exact", "Fuzzy", "Best Keyword", "Above Threshold"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, s := range scores {
		table.Append([]string{
			s.Category,
			fmt.Sprintf("%.3f", s.Score),
			fmt.Sprintf("%t", s.Exact),
			fmt.Sprintf("%.3f", s.FuzzyScore),
			s.BestKeyword,
			fmt.Sprintf("%t", s.AboveCutoff),
		})
	}
	table.Render()
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyExplain, "explain", false, "Show the score of every category")
	classifyCmd.Flags().StringVar(&classifyCategories, "categories", "", "Classify against a CSV or XLSX category export instead of the database")
	classifyCmd.Flags().StringVarP(&classifyFormat, "format", "f", "", "Format of the --categories file (default from its extension)")
}
