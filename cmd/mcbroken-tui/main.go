package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/tinytelemetry/mcbroken/internal/peerlink"
	"github.com/tinytelemetry/mcbroken/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	flags := pflag.NewFlagSet("mcbroken-tui", pflag.ExitOnError)
	configPath := flags.String("config", "", "config file (default is $HOME/.config/mcbroken/config.yml)")
	showVersion := flags.Bool("version", false, "print version information")
	flags.String("peer-url", defaultPeerURL, "bridge peer endpoint")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("mcbroken-tui - Watch Emulator\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	_ = godotenv.Load()

	cfg, err := loadCLIConfig(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	// Log lines would corrupt the alternate screen.
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := peerlink.Dial(ctx, cfg.PeerURL)
	if err != nil {
		return fmt.Errorf("cannot connect to the bridge at %s: %w\nIs the bridge running? Start it with: mcbroken", cfg.PeerURL, err)
	}
	defer client.Close()

	app := tui.New(client, tui.DefaultKeyMap())

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
