package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/mamanxue/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import every deck from the configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		syncer := sync.New(a.db, sync.Options{ReposDir: a.cfg.Sources.ReposDir, Logger: a.logger})
		report, err := syncer.RunSync(cmd.Context())
		if err != nil {
			return err
		}
		for _, sr := range report.Sources {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d decks, %d cards, %d removed, %d errors\n",
				sr.Path, len(sr.Decks), sr.Cards, sr.Orphaned, len(sr.Errors))
		}
		return nil
	},
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage deck sources",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <path/or/url.git>",
	Short: "Register a local directory or git repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		syncer := sync.New(a.db, sync.Options{ReposDir: a.cfg.Sources.ReposDir, Logger: a.logger})
		source, err := syncer.AddSource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "source %d (%s): %s\n", source.ID, source.Type, source.Path)
		return nil
	},
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deck sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sources, err := a.db.GetAllSources(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tPATH\tLAST SCANNED")
		for _, s := range sources {
			scanned := "never"
			if s.LastScanned != nil {
				scanned = s.LastScanned.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Type, s.Path, scanned)
		}
		return tw.Flush()
	},
}

func init() {
	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceListCmd)
}
