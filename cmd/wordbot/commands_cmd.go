package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/wordbot/internal/tui"
)

const cliRequestTimeout = 30 * time.Second

type commandSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Entries     int    `json:"entries"`
	Source      string `json:"source"`
}

func runCommandsList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
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
	cmds, err := cfg.BuildCommands()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Word list error: %v\n", err)
		return 1
	}

	summaries := make([]commandSummary, 0, len(cmds))
	for i, c := range cmds {
		source := "builtin"
		if wf := cfg.Commands[i].WordsFile; wf != "" {
			source = cfg.ResolvePath(wf)
		}
		summaries = append(summaries, commandSummary{
			Name:        c.Name,
			Description: c.Description,
			Entries:     len(c.Words),
			Source:      source,
		})
	}

	if *jsonOut {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENTRIES\tSOURCE\tDESCRIPTION")
	for _, s := range summaries {
		fmt.Fprintf(tw, "/%s\t%d\t%s\t%s\n", s.Name, s.Entries, s.Source, s.Description)
	}
	_ = tw.Flush()
	return 0
}

func runCommandsRegister(args []string) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadToolConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	if cfg.Discord.ApplicationID == "" {
		fmt.Fprintln(os.Stderr, "Error: discord.application_id is required")
		return 1
	}
	client, err := newDiscordClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
		return 1
	}
	if client == nil {
		fmt.Fprintln(os.Stderr, "Error: discord.bot_token is required")
		return 1
	}
	cmds, err := cfg.BuildCommands()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Word list error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cliRequestTimeout)
	defer cancel()
	if err := client.SetCommands(ctx, cfg.Discord.ApplicationID, discordCommands(cmds)); err != nil {
		fmt.Fprintf(os.Stderr, "Register failed: %v\n", err)
		return 1
	}
	fmt.Printf("Registered %d command(s) for application %s\n", len(cmds), cfg.Discord.ApplicationID)
	return 0
}

func runKeyShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	fetch := fs.Bool("fetch", false, "Read the key from the application instead of the config")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadToolConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	source := "config"
	if *fetch || cfg.Discord.PublicKey == "" {
		cfg.Discord.PublicKey = ""
		source = "application"
	}
	client, err := newDiscordClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cliRequestTimeout)
	defer cancel()
	key, err := resolveKey(ctx, cfg, client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Key error: %v\n", err)
		return 1
	}

	fmt.Printf("public_key: %s\n", key)
	fmt.Printf("fingerprint: %s\n", key.Fingerprint())
	fmt.Printf("source: %s\n", source)
	return 0
}

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	url := fs.String("url", "http://127.0.0.1:8081", "Ops listener URL")
	apiKey := fs.String("api-key", os.Getenv("WORDBOT_OPS_API_KEY"), "Ops bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or WORDBOT_OPS_API_KEY env var.")
		return 1
	}

	if err := tui.Run(*url, *apiKey); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
