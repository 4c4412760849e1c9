package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandia-project/sandia-go/internal/client"
	"github.com/spf13/cobra"
)

var (
	statusJSON  bool
	statusWatch bool
)

var statusCmd = &cobra.Command{
	Use:   "status <artifact-id>",
	Short: "Show engine job states for an artifact on a running server",
	Long: `Status queries a sandia server for the per-engine job states of an
artifact analyzed in the current server session.

With --watch the command subscribes over a websocket and streams state
changes until every engine reaches a terminal state.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print states as JSON")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "stream state changes until all engines finish")
}

func runStatus(cmd *cobra.Command, args []string) error {
	artifactID := args[0]
	c := client.New(cfg.ServerURL)

	if statusWatch {
		return watchStatus(c, artifactID)
	}

	ctx := context.Background()
	status, err := c.Status(ctx, artifactID)
	if err != nil {
		return err
	}
	return printStatus(*status)
}

func watchStatus(c *client.Client, artifactID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.Watch(ctx, artifactID, printStatus)
}

func printStatus(status client.StatusResponse) error {
	if statusJSON {
		return json.NewEncoder(os.Stdout).Encode(status)
	}

	if len(status.JobStates) == 0 {
		fmt.Printf("No engine jobs known for artifact %s\n", status.ArtifactID)
		return nil
	}

	fmt.Printf("Artifact %s:\n", status.ArtifactID)
	for kind, state := range status.JobStates {
		fmt.Printf("  %-11s %s\n", kind, state)
	}
	return nil
}
