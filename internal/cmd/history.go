package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the journal of page changes",
	Long: `Show the git journal of the data directory, newest first.

The journal records one commit per create, save, rename, delete and
external edit. It is only kept when journal.enabled is true, which requires
the file backend.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	if ws.journal == nil {
		return fmt.Errorf("the journal is disabled\nEnable it with 'pagebook config set journal.enabled true'")
	}
	if _, err := ws.session(cmd); err != nil {
		return err
	}

	entries, err := ws.journal.Log(historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No changes recorded yet"))
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s %s %s\n",
			warningStyle.Render(e.Hash[:7]),
			mutedStyle.Render(e.When.Local().Format("2006-01-02 15:04:05")),
			strings.TrimSpace(e.Message))
	}
	return nil
}
