// Command chat is a terminal client for a reservation conversation, talking
// to the agent through the API's relay endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/QiangXu1564/order-reserve-aid/internal/chat"
)

func main() {
	apiURL := flag.String("api", envOr("CHAT_API_URL", "http://localhost:8080"), "base URL of the order-reserve API")
	reservationID := flag.String("reservation", "", "reservation id identifying the conversation")
	flag.Parse()

	if *reservationID == "" {
		fmt.Fprintln(os.Stderr, "chat: -reservation is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newModel(ctx, chat.NewProxyClient(*apiURL, nil), *reservationID)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
