package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
	"github.com/tinytelemetry/mcbroken/internal/feed"
	"github.com/tinytelemetry/mcbroken/internal/httpserver"
	"github.com/tinytelemetry/mcbroken/internal/locate"
	"github.com/tinytelemetry/mcbroken/internal/model"
	"github.com/tinytelemetry/mcbroken/internal/peerlink"
	"github.com/tinytelemetry/mcbroken/internal/session"
	"github.com/tinytelemetry/mcbroken/internal/settings"
)

// bridge holds the wired components of a running daemon.
type bridge struct {
	cfg        appConfig
	cache      *feed.Cache
	locator    *locate.Store
	slots      *settings.Store
	link       *peerlink.Link
	dispatcher *session.Dispatcher
	api        *httpserver.Server
}

func newBridge(cfg appConfig) (*bridge, error) {
	clk := clockwork.NewRealClock()

	slots, err := settings.Open(cfg.SettingsPath, cfg.SavedSlots)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved slots: %w", err)
	}

	locator := locate.New(clk)
	if loc, ok := cfg.pinnedLocation(); ok {
		if err := locator.Pin(loc); err != nil {
			return nil, err
		}
	}

	cache := feed.New(feed.Config{
		URL:       cfg.UpstreamURL,
		Timeout:   cfg.UpstreamTimeout,
		MaxAge:    cfg.CacheMaxAge,
		UserAgent: cfg.UserAgent,
		Clock:     clk,
	})

	link := peerlink.NewLink(peerlink.Config{
		AckTimeout:   cfg.AckTimeout,
		WriteTimeout: cfg.PeerWriteTimeout,
	})

	dispatcher := session.New(session.Config{
		Source:  cache,
		Locator: locator,
		Slots:   slots,
		Sender:  link,
		LocateOptions: model.LocateOptions{
			Timeout:      cfg.GPSTimeout,
			HighAccuracy: false,
			MaximumAge:   cfg.GPSMaximumAge,
		},
	})

	api := httpserver.NewServer(cfg.APIAddr, httpserver.Deps{
		Cache:    cache,
		Sessions: dispatcher,
		Peer:     link,
		Slots:    slots,
		Location: locator,
	})

	return &bridge{
		cfg:        cfg,
		cache:      cache,
		locator:    locator,
		slots:      slots,
		link:       link,
		dispatcher: dispatcher,
		api:        api,
	}, nil
}

func (b *bridge) start() error {
	if err := b.api.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	log.Printf("server: listening on %s", b.api.Addr())
	return nil
}

// run dispatches peer commands until ctx is cancelled.
func (b *bridge) run(ctx context.Context) error {
	return b.dispatcher.Run(ctx, b.link.Commands())
}

// stop unblocks pending sends first so session pipelines can drain.
func (b *bridge) stop() {
	b.link.Stop()
	b.dispatcher.Close()
	if err := b.api.Stop(); err != nil {
		log.Printf("server: API shutdown: %v", err)
	}
}

// runServer starts the bridge and blocks until SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	b, err := newBridge(cfg)
	if err != nil {
		return err
	}
	if err := b.start(); err != nil {
		return err
	}
	defer b.stop()

	// Set up context and signal handling before dispatching
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(b)

	if err := b.run(ctx); err != nil {
		log.Printf("server: dispatcher exited with error: %v", err)
	}

	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)
	return nil
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "mcbroken")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "mcbroken.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(b *bridge) {
	cfg := b.cfg
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	gold := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := red.Bold(true).Render(`
    ╔╦╗╔═╗╔╗ ╦═╗╔═╗╦╔═╔═╗╔╗╔
    ║║║║  ╠╩╗╠╦╝║ ║╠╩╗║╣ ║║║
    ╩ ╩╚═╝╚═╝╩╚═╚═╝╩ ╩╚═╝╝╚╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, gold.Render(b.api.Addr())))
	lines = append(lines, fmt.Sprintf("    %s  Peer Link      %s", check, gold.Render("ws://"+b.api.Addr()+model.DefaultPeerPath)))
	lines = append(lines, "")

	// Upstream
	lines = append(lines, bold.Render("    Upstream"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Feed           %s", check, dim.Render(cfg.UpstreamURL)))
	lines = append(lines, fmt.Sprintf("    %s  Cache          %s", check, dim.Render(cfg.CacheMaxAge.String())))
	lines = append(lines, "")

	// Saved locations
	lines = append(lines, bold.Render("    Locations"))
	lines = append(lines, "")
	filled := 0
	for _, label := range b.slots.Slots().Normalized() {
		if label != "" {
			filled++
		}
	}
	lines = append(lines, fmt.Sprintf("    %s  Saved Slots    %s", check, dim.Render(fmt.Sprintf("%d of %d  %s", filled, model.SavedSlotCount, shortenPath(cfg.SettingsPath)))))
	if loc, ok := cfg.pinnedLocation(); ok {
		lines = append(lines, fmt.Sprintf("    %s  Location       %s", check, dim.Render(fmt.Sprintf("pinned %.5f,%.5f", loc.Lat, loc.Lon))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Location       %s", dot, dim.Render("PUT /api/location")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+gold.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
