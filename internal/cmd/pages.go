package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/util"
)

// Column limits for 'list --versions'.
const (
	maxTitleWidth = 40
	excerptWidth  = 48
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List page titles",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var showCmd = &cobra.Command{
	Use:   "show <title>",
	Short: "Print a page and its version",
	Long: `Print a page's content. The version is printed first (unless --raw is
given); pass it to 'pagebook save --version' to write the page back.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an empty page",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var renameCmd = &cobra.Command{
	Use:   "rename <old-title> <new-title>",
	Short: "Rename a page",
	Long: `Rename a page. Content is kept and a new version is issued; any version
obtained before the rename no longer matches.`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

var saveCmd = &cobra.Command{
	Use:   "save <title>",
	Short: "Write a page if it has not changed since it was loaded",
	Long: `Write new content to a page, but only if the page still carries the
version given with --version. If anyone saved, renamed or edited the page
in between, nothing is written and the command fails with a conflict.

Content is read from --file, or from stdin when --file is omitted or "-".
Reading content from stdin leaves no room for the token prompt, so pass
the token with --token or $PAGEBOOK_TOKEN in that case.

Examples:
  pagebook show Intro                       # note the version
  $EDITOR intro.md
  pagebook save Intro --version 3-9f0c... --file intro.md
  pagebook save Intro --version 3-9f0c... --rename Introduction < intro.md`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <title>",
	Aliases: []string{"rm"},
	Short:   "Delete a page if it has not changed since it was loaded",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var (
	listVersions bool
	showRaw      bool
	saveVersion  string
	saveRename   string
	saveFile     string
	deleteVer    string
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(deleteCmd)

	listCmd.Flags().BoolVarP(&listVersions, "versions", "v", false, "Show each page's version and first line")

	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print only the content")

	saveCmd.Flags().StringVar(&saveVersion, "version", "", "Version the edit is based on (required)")
	saveCmd.Flags().StringVar(&saveRename, "rename", "", "Rename the page in the same write")
	saveCmd.Flags().StringVarP(&saveFile, "file", "f", "", "Read content from file (default: stdin)")
	_ = saveCmd.MarkFlagRequired("version")

	deleteCmd.Flags().StringVar(&deleteVer, "version", "", "Version the deletion is based on (required)")
	_ = deleteCmd.MarkFlagRequired("version")
}

func runList(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	svc, err := ws.session(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !listVersions {
		titles, err := svc.ListPages()
		if err != nil {
			return err
		}
		for _, title := range titles {
			fmt.Fprintln(out, title)
		}
		return nil
	}

	docs, err := svc.Pages()
	if err != nil {
		return err
	}
	titles := make([]string, len(docs))
	width := 0
	for i, d := range docs {
		titles[i] = util.Truncate(d.Title, maxTitleWidth)
		width = max(width, lipgloss.Width(titles[i]))
	}
	for i, d := range docs {
		line := fmt.Sprintf("%s%s  %s", titles[i], strings.Repeat(" ", width-lipgloss.Width(titles[i])), versionStyle.Render(d.Version))
		if excerpt := util.Excerpt(d.Content, excerptWidth); excerpt != "" {
			line += "  " + mutedStyle.Render(excerpt)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	svc, err := ws.session(cmd)
	if err != nil {
		return err
	}

	doc, err := svc.LoadPage(args[0])
	if err != nil {
		return explain(err)
	}

	out := cmd.OutOrStdout()
	if !showRaw {
		fmt.Fprintln(out, titleStyle.Render(doc.Title))
		fmt.Fprintln(out, mutedStyle.Render("version: ")+versionStyle.Render(doc.Version))
		fmt.Fprintln(out)
	}
	fmt.Fprint(out, doc.Content)
	if !showRaw && doc.Content != "" && !strings.HasSuffix(doc.Content, "\n") {
		fmt.Fprintln(out)
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	svc, err := ws.session(cmd)
	if err != nil {
		return err
	}

	doc, err := svc.NewPage(cmd.Context(), args[0])
	if err != nil {
		return explain(err)
	}
	printWritten(cmd.OutOrStdout(), "Created", doc.Title, doc.Version)
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	svc, err := ws.session(cmd)
	if err != nil {
		return err
	}

	version, err := svc.RenamePage(cmd.Context(), args[0], args[1])
	if err != nil {
		return explain(err)
	}
	printWritten(cmd.OutOrStdout(), "Renamed "+args[0]+" to", args[1], version)
	return nil
}

func runSave(cmd *cobra.Command, args []string) error {
	content, err := readContent(cmd, saveFile)
	if err != nil {
		return err
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

	title := args[0]
	newTitle := saveRename
	if newTitle == "" {
		newTitle = title
	}
	version, err := svc.SavePageIfMatch(cmd.Context(), title, newTitle, content, saveVersion)
	if err != nil {
		return explain(err)
	}
	printWritten(cmd.OutOrStdout(), "Saved", newTitle, version)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	svc, err := ws.session(cmd)
	if err != nil {
		return err
	}

	if err := svc.DeletePage(cmd.Context(), args[0], deleteVer); err != nil {
		return explain(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Deleted "+args[0]))
	return nil
}

// readContent reads page content from path, or stdin for "" and "-".
func readContent(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	return string(data), nil
}

func printWritten(w io.Writer, verb, title, version string) {
	fmt.Fprintf(w, "%s %s\n", successStyle.Render(verb), titleStyle.Render(title))
	fmt.Fprintf(w, "%s%s\n", mutedStyle.Render("version: "), versionStyle.Render(version))
}

// explain adds a hint to errors a user can act on.
func explain(err error) error {
	switch {
	case errors.IsConflict(err):
		return fmt.Errorf("%w\n%s", err,
			warningStyle.Render("The page changed after you loaded it. Run 'pagebook show' for the current version and reapply your edit."))
	case errors.Is(err, errors.ErrPageExists):
		return fmt.Errorf("%w\n%s", err,
			warningStyle.Render("Pick another title, or rename the existing page first."))
	default:
		return err
	}
}
