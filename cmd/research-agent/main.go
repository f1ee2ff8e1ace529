package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/agent-lab/pkg/clients"
	"github.com/mikeboe/agent-lab/pkg/config"
	"github.com/mikeboe/agent-lab/pkg/research"
)

var (
	query      string
	runID      string
	stateFile  string
	resumeFrom string
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "research-agent",
		Short: "A multi-stage research pipeline",
		Long:  `Research-agent runs a query through a plan, search, validate, process and generate pipeline with bounded retries and per-stage checkpoints. With --state-file the state is snapshotted after every stage; an interrupted run can be continued with --resume-from.`,
		Run: func(cmd *cobra.Command, args []string) {
			if query == "" && resumeFrom == "" {
				slog.Error("--query or --resume-from is required")
				os.Exit(1)
			}
			if runID == "" {
				runID = uuid.New().String()
			}

			llm, err := clients.Ollama(cfg, "")
			if err != nil {
				slog.Error("Failed to create LLM client", "error", err)
				os.Exit(1)
			}

			engine := research.NewEngine(llm, research.MockSearcher{}, research.ConfigFromEnv(cfg), slog.Default())
			if stateFile != "" {
				engine.OnStateUpdate = func(s research.PipelineState) {
					if err := writeSnapshot(stateFile, s); err != nil {
						slog.Error("Failed to write state snapshot", "path", stateFile, "error", err)
					}
				}
			}

			pipeline, err := research.NewPipeline(engine, research.WithMemoryCheckpoints())
			if err != nil {
				slog.Error("Failed to build pipeline", "error", err)
				os.Exit(1)
			}

			var state *research.PipelineState
			if resumeFrom != "" {
				snapshot, err := loadSnapshot(resumeFrom)
				if err != nil {
					slog.Error("Failed to load state snapshot", "path", resumeFrom, "error", err)
					os.Exit(1)
				}
				slog.Info("Resuming research", "query", snapshot.Query, "stage", snapshot.Stage)
				state = pipeline.ResumeFromState(context.Background(), snapshot)
			} else {
				slog.Info("Starting research", "query", query, "run_id", runID)
				state = pipeline.Run(context.Background(), query, runID)
			}

			if state.Stage != research.StageComplete {
				slog.Error("Research failed", "stage", state.Stage, "error", state.ErrorMessage)
				os.Exit(1)
			}

			fmt.Println("\n=== RESEARCH REPORT ===")
			fmt.Println(state.Report)
		},
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The research query")
	rootCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (random UUID when omitted)")
	rootCmd.Flags().StringVar(&stateFile, "state-file", "", "Write a state snapshot to this file after every stage")
	rootCmd.Flags().StringVar(&resumeFrom, "resume-from", "", "Resume from a state snapshot file instead of starting fresh")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func writeSnapshot(path string, s research.PipelineState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func loadSnapshot(path string) (*research.PipelineState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s research.PipelineState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
