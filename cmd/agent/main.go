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
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/agent-lab/pkg/agent"
	"github.com/mikeboe/agent-lab/pkg/clients"
	"github.com/mikeboe/agent-lab/pkg/config"
	"github.com/mikeboe/agent-lab/pkg/tools"
	"github.com/mikeboe/agent-lab/pkg/weather"
)

var (
	message    string
	withMemory bool
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
		Use:   "agent",
		Short: "A tool-calling terminal agent",
		Long:  `Agent answers questions with a calculator, a weather lookup and a simulated email tool. With --memory it keeps the conversation across turns.`,
		Run: func(cmd *cobra.Command, args []string) {
			llm, err := clients.Ollama(cfg, "")
			if err != nil {
				slog.Error("Failed to create LLM client", "error", err)
				os.Exit(1)
			}

			weatherClient := weather.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIKey)
			registry := tools.NewRegistry(weatherClient, slog.Default())
			ag := agent.New(llm, registry, slog.Default())
			ag.Temperature = cfg.LLMTemperature

			if cmd.Flags().Changed("message") {
				response, err := ag.Run(context.Background(), message)
				if err != nil {
					slog.Error("Agent failed", "error", err)
					os.Exit(1)
				}
				fmt.Println(response)
				return
			}

			runInteractive(ag)
		},
	}

	rootCmd.Flags().StringVarP(&message, "message", "m", "", "Answer a single message and exit")
	rootCmd.Flags().BoolVar(&withMemory, "memory", false, "Keep conversation history across turns")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func runInteractive(ag *agent.Agent) {
	reader := bufio.NewReader(os.Stdin)
	if withMemory {
		fmt.Println("Agent ready (with memory). Type 'quit' to exit.")
	} else {
		fmt.Println("Agent ready. Type 'quit' to exit.")
	}

	var history []llms.MessageContent
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
		if input == "quit" || input == "exit" {
			return
		}

		if !withMemory {
			response, err := ag.Run(context.Background(), input)
			if err != nil {
				slog.Error("Agent failed", "error", err)
				continue
			}
			fmt.Printf("Agent: %s\n", response)
			continue
		}

		result, err := ag.RunWithHistory(context.Background(), input, history)
		if err != nil {
			slog.Error("Agent failed", "error", err)
			continue
		}
		history = result.History
		for _, action := range result.Actions {
			fmt.Printf("  [tool] %s(%s) -> %s\n", action.Tool, string(action.Input), action.Output)
		}
		fmt.Printf("Agent: %s\n", result.Response)
	}
}
