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

	"github.com/mikeboe/agent-lab/pkg/chat"
	"github.com/mikeboe/agent-lab/pkg/clients"
	"github.com/mikeboe/agent-lab/pkg/config"
)

var message string

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
		Use:   "chatbot",
		Short: "A baseline terminal chatbot",
		Long:  `Chatbot sends a single user message (plus a fixed system prompt) to a locally hosted model and prints the reply. No tools, no memory.`,
		Run: func(cmd *cobra.Command, args []string) {
			llm, err := clients.Ollama(cfg, "")
			if err != nil {
				slog.Error("Failed to create LLM client", "error", err)
				os.Exit(1)
			}
			bot := chat.NewBot(llm)
			bot.Temperature = cfg.LLMTemperature

			if cmd.Flags().Changed("message") {
				reply, err := bot.Reply(context.Background(), message)
				if err != nil {
					slog.Error("Chat failed", "error", err)
					os.Exit(1)
				}
				fmt.Println(reply)
				return
			}

			// Interactive Mode
			reader := bufio.NewReader(os.Stdin)
			fmt.Println("Chatbot ready. Type 'quit' to exit.")
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

				reply, err := bot.Reply(context.Background(), input)
				if err != nil {
					slog.Error("Chat failed", "error", err)
					continue
				}
				fmt.Printf("Bot: %s\n", reply)
			}
		},
	}

	rootCmd.Flags().StringVarP(&message, "message", "m", "", "Send a single message and exit")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
