package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shook/internal/history"
	"shook/internal/install"
	"shook/pkg/fileutil"
)

var (
	historyDB    string
	historyLimit int
	historyGUID  string
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent webhook deliveries",
	Long: `Show the deliveries recorded by shook serve, newest first.

Use --guid to look up one delivery by its X-GitHub-Delivery id.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", getEnvOrDefault("SHOOK_DB_PATH", install.DefaultDBPath), "Path to SQLite delivery history")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of deliveries to show")
	historyCmd.Flags().StringVar(&historyGUID, "guid", "", "Show deliveries with this delivery id")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !fileutil.FileExists(historyDB) {
		return fmt.Errorf("no history database at %s", historyDB)
	}
	hist, err := history.NewHistory(historyDB)
	if err != nil {
		return err
	}
	defer hist.Close()

	records, err := loadHistory(cmd.Context(), hist)
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	printHistory(os.Stdout, records)
	return nil
}

func loadHistory(ctx context.Context, hist *history.History) ([]history.DeliveryRecord, error) {
	if historyGUID != "" {
		return hist.FindByGUID(ctx, historyGUID)
	}
	return hist.Recent(ctx, historyLimit)
}

func printHistory(w io.Writer, records []history.DeliveryRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No deliveries recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tEVENT\tOUTCOME\tSTATUS\tDURATION\tDELIVERY\tERROR")
	for _, r := range records {
		duration := "-"
		if r.DurationSeconds != nil {
			duration = (time.Duration(*r.DurationSeconds * float64(time.Second))).Round(time.Millisecond).String()
		}
		errMsg := ""
		if r.ErrorMessage != nil {
			errMsg = *r.ErrorMessage
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Event,
			r.Outcome,
			r.StatusCode,
			duration,
			r.GUID,
			errMsg)
	}
	tw.Flush()
}
