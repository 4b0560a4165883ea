package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/rmax-ai/pganomaly/pkg/client"
)

func main() {
	apiURL := pflag.String("api-url", envOr("PGANOMALY_API_URL", client.DefaultEndpoint), "pganomaly API")
	pflag.Parse()

	// The dashboard polls every second; a failed poll is shown, not retried.
	c := client.NewClient(*apiURL, client.WithRetry(client.DefaultBackoff(), 0))
	p := tea.NewProgram(initialModel(c, c.Endpoint()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "pganomaly-tui: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
