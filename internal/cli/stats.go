package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sandia-project/sandia-go/internal/client"
	"github.com/sandia-project/sandia-go/internal/metrics"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show operation metrics from a running server",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print metrics as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	c := client.New(cfg.ServerURL)

	snap, err := c.Stats(context.Background())
	if err != nil {
		return err
	}

	if statsJSON {
		return json.NewEncoder(os.Stdout).Encode(snap)
	}

	fmt.Printf("Uptime: %.0fs\n\n", snap.UptimeSeconds)
	printOp("analyze", snap.Analyze)
	printOp("trigger", snap.Trigger)
	printOp("poll", snap.Poll)
	printOp("consensus", snap.Consensus)
	return nil
}

func printOp(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		fmt.Printf("%-10s no data\n", name)
		return
	}

	fmt.Printf("%-10s count=%d avg=%.1fms min=%dms max=%dms\n",
		name, op.Count, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.AvgAttempts != nil {
		fmt.Printf("%-10s attempts avg=%.1f min=%d max=%d\n",
			"", *op.AvgAttempts, *op.MinAttempts, *op.MaxAttempts)
	}
}
