package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review statistics and deck summaries",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	now := time.Now()
	stats, err := a.db.ReviewStats(ctx, now)
	if err != nil {
		return err
	}
	decks, err := a.db.ListDecks(ctx, now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Reviewed today: %d\n", stats.TodayReviewed)
	fmt.Fprintf(out, "Day streak:     %d\n", stats.Streak)
	if stats.LastReviewed != nil {
		fmt.Fprintf(out, "Last review:    %s\n", stats.LastReviewed.Local().Format(time.DateTime))
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DECK\tCARDS\tDUE\tNEW\tHARD\tSUSPENDED")
	for _, d := range decks {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", d.DeckID, d.Total, d.DueToday, d.NewCount, d.HardCount, d.Suspended)
	}
	return tw.Flush()
}
