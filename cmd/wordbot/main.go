package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "config":
		return runConfigNoun(args)
	case "commands":
		return runCommandsNoun(args)
	case "key":
		return runKeyNoun(args)

	// --- VERBS ---
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "monitor":
		if hasHelpFlag(args) {
			printMonitorHelp()
			return 0
		}
		return runMonitor(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: wordbot version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("wordbot %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(built); ok {
		info.BuildTime = normalized
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`wordbot - slash-command bot answering signed interaction webhooks

Usage:
  wordbot <command> [flags]
  wordbot <noun> <action> [flags]

Commands:
  serve             Start the interactions listener in the foreground
  monitor           Follow the ops event stream in a terminal UI
  version           Show version information

Config Commands:
  config check      Validate settings, word lists, and integrity
  config lock       Authorize current state (update integrity hashes)
  config show       Print the effective configuration (secrets redacted)

Slash Commands:
  commands list     Show configured commands and word list sizes
  commands register Overwrite the application's global commands

Keys:
  key show          Show the verifying key and its fingerprint

General:
  --version         Show version information
  help              Show this help message

Use 'wordbot <noun> help' for action-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runCommandsNoun(args []string) int {
	if len(args) < 1 {
		printCommandsNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printCommandsNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printCommandsListHelp()
			return 0
		}
		return runCommandsList(actionArgs)
	case "register":
		if hasHelpFlag(actionArgs) {
			printCommandsRegisterHelp()
			return 0
		}
		return runCommandsRegister(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown commands action: %s\n", action)
		return 1
	}
}

func runKeyNoun(args []string) int {
	if len(args) < 1 {
		printKeyNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printKeyNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "show":
		if hasHelpFlag(actionArgs) {
			printKeyShowHelp()
			return 0
		}
		return runKeyShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown key action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// --- HELP ---

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: wordbot config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock, show")
}

func printCommandsNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: wordbot commands <action> [flags]")
	fmt.Fprintln(w, "Actions: list, register")
}

func printKeyNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: wordbot key <action> [flags]")
	fmt.Fprintln(w, "Actions: show")
}

func printServeHelp() {
	fmt.Println("Usage: wordbot serve [--config PATH]")
	fmt.Println("Start the interactions listener in the foreground.")
	fmt.Println("")
	fmt.Println("Without --config, the config is discovered from $WORDBOT_CONFIG,")
	fmt.Println("~/.config/wordbot, /etc/wordbot, then ./config.yaml. When none exists")
	fmt.Println("the environment (BOT_KEY, APPLICATION_ID, PUBLIC_KEY, ...) is used.")
}

func printMonitorHelp() {
	fmt.Println("Usage: wordbot monitor [--url URL] [--api-key KEY]")
	fmt.Println("Launch the terminal dashboard against the ops listener.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: wordbot config check [--config PATH] [--format human|json]")
	fmt.Println("Validate configuration without starting anything.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Valid (warnings allowed)")
	fmt.Println("  1  Configuration errors found")
	fmt.Println("  2  Config could not be read")
}

func printConfigLockHelp() {
	fmt.Println("Usage: wordbot config lock [--config PATH] [--dry-run] [-v|--verbose]")
	fmt.Println("Write .checksums for the config file and every referenced word list.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: wordbot config show [--config PATH] [--json]")
	fmt.Println("Print the effective configuration with secrets redacted.")
}

func printCommandsListHelp() {
	fmt.Println("Usage: wordbot commands list [--config PATH] [--json]")
	fmt.Println("Show configured commands and the size of each word list.")
}

func printCommandsRegisterHelp() {
	fmt.Println("Usage: wordbot commands register [--config PATH]")
	fmt.Println("Overwrite the application's global commands with the configured set.")
}

func printKeyShowHelp() {
	fmt.Println("Usage: wordbot key show [--config PATH] [--fetch]")
	fmt.Println("Show the verifying key. --fetch reads it from the application instead of the config.")
}
