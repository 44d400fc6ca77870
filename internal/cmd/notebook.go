package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/pagebook/internal/notebook"
	"github.com/Iron-Ham/pagebook/internal/service"
)

var importCmd = &cobra.Command{
	Use:   "import <notebook.md>",
	Short: "Import a markdown notebook as pages",
	Long: `Import every "## Title" section of a markdown notebook as a page.

Existing pages are left alone unless --overwrite is given, in which case
their content is replaced. Use "-" to read the notebook from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all pages as a single document",
	Long: `Export all pages, in title order, as a markdown notebook (one "## Title"
section per page) or as YAML including each page's version.

Examples:
  pagebook export > notebook.md
  pagebook export --format yaml --output pages.yaml`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	importOverwrite bool
	exportFormat    string
	exportOutput    string
	exportTitle     string
)

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "Replace the content of pages that already exist")

	exportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "Output format: markdown or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "Notebook title (default: Notebook)")
}

// yamlExport is the document written by export --format yaml.
type yamlExport struct {
	Title      string             `yaml:"title,omitempty"`
	ExportedAt time.Time          `yaml:"exported_at"`
	Pages      []service.Document `yaml:"pages"`
}

func runImport(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open notebook: %w", err)
		}
		defer f.Close()
		in = f
	}
	nb, err := notebook.Parse(in)
	if err != nil {
		return fmt.Errorf("failed to parse notebook: %w", err)
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	svc, err := ws.session(cmd)
	if err != nil {
		return err
	}

	result, err := svc.Import(cmd.Context(), nb, importOverwrite)
	out := cmd.OutOrStdout()
	for _, outcome := range []service.ImportOutcome{service.OutcomeCreated, service.OutcomeUpdated, service.OutcomeSkipped} {
		titles := result.Titles(outcome)
		if len(titles) == 0 {
			continue
		}
		style := successStyle
		if outcome == service.OutcomeSkipped {
			style = mutedStyle
		}
		fmt.Fprintf(out, "%s %s\n", style.Render(fmt.Sprintf("%s (%d):", outcome, len(titles))), strings.Join(titles, ", "))
	}
	return err
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "markdown" && exportFormat != "yaml" {
		return fmt.Errorf("invalid format %q: expected markdown or yaml", exportFormat)
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	svc, err := ws.session(cmd)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if exportFormat == "yaml" {
		docs, err := svc.Pages()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(yamlExport{
			Title:      exportTitle,
			ExportedAt: time.Now().UTC().Truncate(time.Second),
			Pages:      docs,
		}); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	nb, err := svc.Export(exportTitle)
	if err != nil {
		return err
	}
	return notebook.Render(out, nb)
}
