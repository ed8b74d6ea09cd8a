// Package doctor validates wordbot configuration without starting anything.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/mattjoyce/wordbot/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor checks a parsed, not yet validated, configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor for cfg, typically from config.Read.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateSchema(r)
	d.validateIntegrity(r)
	d.validateWordLists(r)
	d.warnKeySource(r)
	d.warnFreshness(r)
	d.warnEndpointURL(r)
	d.warnOpsExposure(r)
	d.warnInlineSecrets(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

var fieldPrefix = regexp.MustCompile(`^([a-z_]+(?:\[\d+\])?(?:\.[a-z_]+)*): (.*)$`)

// validateSchema turns every config.Validate failure into an error issue.
func (d *Doctor) validateSchema(r *Result) {
	err := d.cfg.Validate()
	if err == nil {
		return
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		msg := e.Error()
		if m := fieldPrefix.FindStringSubmatch(msg); m != nil {
			d.addError(r, "schema", m[1], m[2])
			continue
		}
		d.addError(r, "schema", "", msg)
	}
}

// validateIntegrity checks the .checksums manifest when the config came from a file.
func (d *Doctor) validateIntegrity(r *Result) {
	if d.cfg.SourcePath == "" {
		return
	}
	err := config.VerifyChecksums(d.cfg)
	switch {
	case err == nil:
	case errors.Is(err, config.ErrNoChecksums):
		d.addWarning(r, "integrity", config.ChecksumFile,
			"no .checksums manifest; run 'wordbot config lock' to enable integrity verification")
	default:
		d.addError(r, "integrity", config.ChecksumFile, err.Error())
	}
}

// validateWordLists loads every word list and flags lists that cannot vary.
func (d *Doctor) validateWordLists(r *Result) {
	cmds, err := d.cfg.BuildCommands()
	if err != nil {
		d.addError(r, "commands", "commands", err.Error())
		return
	}
	for i, c := range cmds {
		if len(c.Words) == 1 {
			d.addWarning(r, "commands", fmt.Sprintf("commands[%d]", i),
				fmt.Sprintf("command %q has a single entry and always returns it", c.Name))
		}
	}
}

func (d *Doctor) warnKeySource(r *Result) {
	if d.cfg.Discord.PublicKey == "" && d.cfg.Discord.BotToken != "" {
		d.addWarning(r, "discord", "discord.public_key",
			"public_key not set; it will be fetched from the application at startup")
	}
}

func (d *Doctor) warnFreshness(r *Result) {
	if d.cfg.Webhook.MaxTimestampSkew == 0 {
		d.addWarning(r, "webhook", "webhook.max_timestamp_skew",
			"signed timestamps are not checked for freshness; captured requests can be replayed")
	}
}

func (d *Doctor) warnEndpointURL(r *Result) {
	raw := d.cfg.Discord.InteractionsEndpointURL
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "https" {
		d.addWarning(r, "discord", "discord.interactions_endpoint_url",
			"interactions endpoint is not https; the platform only accepts https URLs")
	}
}

func (d *Doctor) warnOpsExposure(r *Result) {
	if !d.cfg.Ops.Enabled {
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.Ops.Listen)
	if err != nil {
		return
	}
	ip := net.ParseIP(host)
	if host == "localhost" || (ip != nil && ip.IsLoopback()) {
		return
	}
	d.addWarning(r, "ops", "ops.listen",
		fmt.Sprintf("ops listener %q is reachable beyond loopback", d.cfg.Ops.Listen))
}

var inlineSecret = regexp.MustCompile(`(?m)^[ \t]*(bot_token|api_key):[ \t]*["']?([^"'\s#]+)`)

// warnInlineSecrets flags secrets written into the file instead of ${VAR}.
func (d *Doctor) warnInlineSecrets(r *Result) {
	if d.cfg.SourcePath == "" {
		return
	}
	data, err := os.ReadFile(d.cfg.SourcePath)
	if err != nil {
		return
	}
	for _, m := range inlineSecret.FindAllStringSubmatch(string(data), -1) {
		if strings.HasPrefix(m[2], "${") {
			continue
		}
		d.addWarning(r, "secrets", m[1],
			fmt.Sprintf("%s is stored in the config file; prefer ${VAR} interpolation", m[1]))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}

	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
