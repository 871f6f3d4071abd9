package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	flags := pflag.NewFlagSet("mcbroken", pflag.ExitOnError)
	configPath := flags.String("config", "", "config file (default is $HOME/.config/mcbroken/config.yml)")
	showVersion := flags.Bool("version", false, "print version information")
	flags.String("api-addr", "", "HTTP API and peer listen address (default "+defaultAPIAddr+")")
	flags.String("upstream-url", "", "markers feed URL")
	flags.String("settings-path", "", "saved slots file (default $HOME/.config/mcbroken/slots.yml)")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("mcbroken - Watch Bridge\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath, changedOnly(flags))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// changedOnly returns a flag set holding only the flags given on the command
// line, so unset flags never shadow config file or environment values.
func changedOnly(flags *pflag.FlagSet) *pflag.FlagSet {
	out := pflag.NewFlagSet(flags.Name(), pflag.ContinueOnError)
	flags.Visit(func(f *pflag.Flag) {
		out.AddFlag(f)
	})
	return out
}
