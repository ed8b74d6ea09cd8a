package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/wordbot/internal/config"
	"github.com/mattjoyce/wordbot/internal/doctor"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

// resolveToolConfigPath returns the explicit path or the discovered one.
func resolveToolConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.Discover()
}

// loadToolConfig reads a config for offline tools without validating it.
// With no file anywhere it falls back to the environment.
func loadToolConfig(configPath string) (*config.Config, error) {
	path, err := resolveToolConfigPath(configPath)
	if errors.Is(err, config.ErrNoConfig) {
		return config.FromEnv(os.LookupEnv)
	}
	if err != nil {
		return nil, err
	}
	return config.Read(path)
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	format := fs.String("format", "human", "Output format: human or json")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if *format != "human" && *format != "json" {
		fmt.Fprintf(os.Stderr, "Unknown format %q (want human or json)\n", *format)
		return 2
	}

	path, err := resolveToolConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 2
	}
	cfg, err := config.Read(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 2
	}

	result := doctor.New(cfg).Validate()

	if *format == "json" {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 2
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Compute hashes without writing .checksums")
	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "Print every hashed file")
	fs.BoolVar(&verbose, "v", false, "Print every hashed file (shorthand)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path, err := resolveToolConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	cfg, err := config.LoadUnverified(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	report, err := config.Lock(cfg, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}

	if verbose || *dryRun {
		for _, f := range report.Files {
			fmt.Printf("  %s  %s\n", f.Hash, f.Name)
		}
	}
	if *dryRun {
		fmt.Printf("Dry-run: would write %s (%d file(s))\n", report.ChecksumPath, len(report.Files))
		return 0
	}
	fmt.Printf("Locked %d file(s) into %s\n", len(report.Files), report.ChecksumPath)
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadToolConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	out, err := renderConfig(redactConfig(cfg), *jsonOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render error: %v\n", err)
		return 1
	}
	fmt.Print(out)
	return 0
}

// redactConfig returns a copy with secrets masked.
func redactConfig(cfg *config.Config) *config.Config {
	c := *cfg
	c.Commands = append([]config.CommandConfig(nil), cfg.Commands...)
	if c.Discord.BotToken != "" {
		c.Discord.BotToken = redacted
	}
	if c.Ops.APIKey != "" {
		c.Ops.APIKey = redacted
	}
	return &c
}

// renderConfig emits YAML, or JSON converted from the YAML document so
// durations keep their human form.
func renderConfig(cfg *config.Config, asJSON bool) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if !asJSON {
		return string(data), nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}
