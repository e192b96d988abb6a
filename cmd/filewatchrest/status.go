package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/0xmhha/filewatchrest/pkg/config"
	"github.com/0xmhha/filewatchrest/pkg/diagnostics"
)

// runStatus queries a running instance's diagnostics endpoint and prints a
// column-aligned summary of watcher, circuit-breaker, and recent-event
// state.
func runStatus(globalOpts globalOptions, positional []string) error {
	resolvedPath := config.ResolvePath(globalOpts.configPath, positional)

	cfg, err := config.NewLoader(resolvedPath).Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	statusURL, err := url.JoinPath(cfg.DiagnosticsURLPrefix, "status")
	if err != nil {
		return fmt.Errorf("build diagnostics URL: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(statusURL)
	if err != nil {
		return fmt.Errorf("query diagnostics endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read diagnostics response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("diagnostics endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var status diagnostics.Status
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("parse diagnostics response: %w", err)
	}

	printStatus(status)
	return nil
}

// printStatus renders status as a fixed set of label/value rows, truncating
// the value column to the terminal width when attached to one.
func printStatus(status diagnostics.Status) {
	width := terminalWidth()

	rows := [][2]string{
		{"Active watchers", fmt.Sprintf("%d", status.ActiveWatchers)},
		{"Restart attempts", fmt.Sprintf("%d", status.RestartAttempts)},
		{"Total events", fmt.Sprintf("%d", status.TotalEvents)},
		{"Events in buffer", fmt.Sprintf("%d", status.EventCount)},
		{"Observed at", status.Timestamp.Format(time.RFC3339)},
	}

	for _, row := range rows {
		printRow(row[0], row[1], width)
	}

	if len(status.CircuitStates) > 0 {
		fmt.Println("\nCircuit breakers:")
		for _, cb := range status.CircuitStates {
			printRow("  "+cb.Endpoint, fmt.Sprintf("%s (failures=%d)", cb.State, cb.FailureCount), width)
		}
	}

	if len(status.RecentEvents) > 0 {
		fmt.Println("\nRecent events:")
		for _, ev := range status.RecentEvents {
			outcome := "ok"
			if !ev.PostedSuccess {
				outcome = "failed: " + ev.Error
			}
			printRow("  "+ev.Path, outcome, width)
		}
	}
}

func printRow(label, value string, width int) {
	line := fmt.Sprintf("%-24s %s", label, value)
	if width > 0 && len(line) > width {
		line = line[:width-1] + "…"
	}
	fmt.Println(strings.TrimRight(line, " "))
}

func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}
