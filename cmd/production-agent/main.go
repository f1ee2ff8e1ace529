package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/agent-lab/pkg/clients"
	"github.com/mikeboe/agent-lab/pkg/config"
	"github.com/mikeboe/agent-lab/pkg/production"
)

var maxIterations int

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
		Use:   "production-agent",
		Short: "An agent built on a reusable agent framework",
		Long:  `Production-agent wraps a framework agent executor with conversation memory, an iteration cap, graceful failure handling and execution statistics.`,
		Run: func(cmd *cobra.Command, args []string) {
			llm, err := clients.Ollama(cfg, "")
			if err != nil {
				slog.Error("Failed to create LLM client", "error", err)
				os.Exit(1)
			}

			ag, err := production.New(llm, maxIterations, slog.Default())
			if err != nil {
				slog.Error("Failed to create agent", "error", err)
				os.Exit(1)
			}

			reader := bufio.NewReader(os.Stdin)
			fmt.Println("Production agent ready. Commands: 'stats', 'reset', 'quit'.")
			for {
				fmt.Print("You: ")
				input, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				input = strings.TrimSpace(input)
				if input == "" {
					continue
				}

				switch input {
				case "quit", "exit":
					printStats(ag.Stats())
					return
				case "stats":
					printStats(ag.Stats())
					continue
				case "reset":
					if err := ag.Reset(context.Background()); err != nil {
						slog.Error("Reset failed", "error", err)
					} else {
						fmt.Println("Conversation memory cleared.")
					}
					continue
				}

				result := ag.Run(context.Background(), input)
				fmt.Printf("Agent: %s\n", result.Answer)
				fmt.Printf("  (took %s, success=%t)\n", result.Duration, result.Success)
			}
		},
	}

	rootCmd.Flags().IntVar(&maxIterations, "max-iterations", 10, "Maximum agent reasoning iterations per run")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func printStats(s production.Stats) {
	fmt.Printf("Executions: %d, successful: %d (%.0f%%), avg duration: %s\n",
		s.TotalExecutions, s.Successful, s.SuccessRate*100, s.AvgDuration)
}
