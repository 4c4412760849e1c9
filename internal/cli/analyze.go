package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/sandia-project/sandia-go/internal/analysis"
	"github.com/sandia-project/sandia-go/internal/consensus"
	"github.com/sandia-project/sandia-go/internal/engine"
	"github.com/sandia-project/sandia-go/internal/metrics"
	"github.com/sandia-project/sandia-go/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	analyzeEngines []string
	analyzeTimeout time.Duration
	analyzeKey     string
	analyzeFile    string
	analyzeJSON    bool
	analyzeNoTUI   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <artifact-id>",
	Short: "Run all engines against an uploaded artifact",
	Long: `Analyze triggers the configured engines against an artifact already
present in the artifact bucket, polls for their results, and prints the
combined consensus.

Examples:
  sandia analyze 7c1e4b2a --file dropper.sh
  sandia analyze 7c1e4b2a --engines rule-based,semantic --timeout 30s
  sandia analyze 7c1e4b2a --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&analyzeEngines, "engines", nil, "engines to run (default all)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0, "overall collection deadline")
	analyzeCmd.Flags().StringVar(&analyzeKey, "key", "", "artifact object key (default uploads/<id>/<file>)")
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "original file name")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full consensus as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeNoTUI, "no-progress", false, "disable the interactive progress display")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	artifactID := args[0]

	invoker, err := engine.NewLambdaInvoker(ctx, cfg.AWSRegion)
	if err != nil {
		return fmt.Errorf("init lambda client: %w", err)
	}
	store, err := storage.NewS3Store(ctx, cfg.AWSRegion)
	if err != nil {
		return fmt.Errorf("init s3 client: %w", err)
	}

	adapters := []engine.Adapter{
		engine.NewRuleBased(invoker, cfg.RuleFunction, cfg.ResultsBucket),
		engine.NewStructural(invoker, cfg.StructuralFunction, cfg.ResultsBucket),
		engine.NewSemantic(invoker, cfg.SemanticFunction, cfg.ResultsBucket),
	}

	collector := metrics.NewCollector()
	poller := analysis.NewPoller(store, cfg.PollInterval, cfg.PollMaxAttempts, logger)
	orchestrator := analysis.NewOrchestrator(adapters, poller, collector, cfg.AnalyzeTimeout, logger)

	opts := analysis.Options{Deadline: analyzeTimeout}
	for _, name := range analyzeEngines {
		kind, err := engine.ParseKind(name)
		if err != nil {
			return err
		}
		opts.Engines = append(opts.Engines, kind)
	}

	key := analyzeKey
	if key == "" {
		key = fmt.Sprintf("uploads/%s/%s", artifactID, analyzeFile)
	}
	artifact := engine.ArtifactRef{
		ID:     artifactID,
		Bucket: cfg.ArtifactBucket,
		Key:    key,
		Name:   fileNameOrDefault(analyzeFile, key),
	}

	var result *consensus.Result
	if useProgressUI() {
		result, err = runAnalysisWithProgress(ctx, orchestrator, artifact, opts)
	} else {
		result, err = orchestrator.Analyze(ctx, artifact, opts)
	}
	if err != nil {
		return err
	}

	if analyzeJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	printConsensus(result, orchestrator.GetJobStates(artifactID))
	return nil
}

// useProgressUI enables the interactive display only on a real terminal.
func useProgressUI() bool {
	return !analyzeNoTUI && !analyzeJSON && term.IsTerminal(int(os.Stdout.Fd()))
}

func fileNameOrDefault(name, key string) string {
	if name != "" {
		return name
	}
	return path.Base(key)
}

func printConsensus(result *consensus.Result, states map[engine.Kind]analysis.JobState) {
	fmt.Printf("Verdict:    %s (%s)\n", result.FinalVerdict, result.ConfidenceLabel)
	fmt.Printf("Risk score: %.2f\n", result.CombinedRiskScore)
	fmt.Printf("Reporting:  %d/%d engines, %d voting malicious\n",
		result.TotalReporting, len(states), result.AgreementCount)
	fmt.Println()

	for _, kind := range engine.AllKinds() {
		state, ok := states[kind]
		if !ok {
			continue
		}
		if v, reported := result.PerEngineVerdicts[kind]; reported {
			fmt.Printf("  %-11s %-10s score=%-7.2f confidence=%.2f %s\n",
				kind, state, v.RiskScore, v.Confidence, v.Category)
		} else {
			fmt.Printf("  %-11s %-10s did not contribute\n", kind, state)
		}
	}
}
