// ABOUTME: Init command: writes a helpdesk config file, prompting for each setting
// ABOUTME: --yes accepts every default without prompting

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/helpdesk/internal/config"
)

var initFlags struct {
	yes bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initFlags.yes, "yes", "y", false, "accept defaults without prompting")
}

// initSettings are the values written by init.
type initSettings struct {
	maxTurns            int
	escalationThreshold int
	retention           string
	webhookURL          string
	archivePath         string
	schedule            string
	logLevel            string
	logFormat           string
}

func runInit(cmd *cobra.Command, _ []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	ask := func(question, defaultVal string) string {
		if initFlags.yes {
			return defaultVal
		}
		return prompt(in, out, question, defaultVal)
	}

	fmt.Fprintln(out, "helpdesk configuration setup")
	fmt.Fprintln(out, "============================")
	fmt.Fprintln(out)

	outputFile := ask("Config file path", config.Path(rootFlags.configPath))

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := ask("File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	s := initSettings{}
	var err error

	fmt.Fprintln(out, "\n--- Conversation ---")
	if s.maxTurns, err = strconv.Atoi(ask("Maximum turns before offering escalation", strconv.Itoa(config.DefaultMaxTurns))); err != nil {
		return fmt.Errorf("max turns: %w", err)
	}
	if s.escalationThreshold, err = strconv.Atoi(ask("Escalation hints before auto-escalating", strconv.Itoa(config.DefaultEscalationThreshold))); err != nil {
		return fmt.Errorf("escalation threshold: %w", err)
	}
	s.retention = ask("Keep ended sessions for", config.DefaultRetention.String())

	fmt.Fprintln(out, "\n--- Escalation ---")
	s.webhookURL = ask("Webhook URL for new tickets (leave empty to disable)", "")
	s.archivePath = ask("SQLite archive path (leave empty to disable)", filepath.Join(getDataPath(), "helpdesk.db"))
	s.schedule = ask("Statistics report schedule (leave empty to disable)", config.DefaultReportSchedule)

	fmt.Fprintln(out, "\n--- Logging ---")
	s.logLevel = ask("Log level (debug/info/warn/error)", "info")
	s.logFormat = ask("Log format (text/json)", "text")

	content := renderConfig(s)

	// Refuse to write something that would not load
	if _, err := config.Parse(content, false); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if s.archivePath != "" {
		if err := os.MkdirAll(filepath.Dir(s.archivePath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start chatting:")
	fmt.Fprintln(out, "  helpdesk chat")
	return nil
}

func renderConfig(s initSettings) string {
	var b strings.Builder
	b.WriteString("# helpdesk configuration\n")
	b.WriteString("# Generated by helpdesk init\n\n")

	b.WriteString("conversation:\n")
	fmt.Fprintf(&b, "  max_turns: %d\n", s.maxTurns)
	fmt.Fprintf(&b, "  escalation_threshold: %d\n\n", s.escalationThreshold)

	b.WriteString("sessions:\n")
	fmt.Fprintf(&b, "  retention: %q\n", s.retention)
	fmt.Fprintf(&b, "  sweep_interval: %q\n\n", config.DefaultSweepInterval.String())

	b.WriteString("escalation:\n")
	fmt.Fprintf(&b, "  notify_timeout: %q\n", config.DefaultNotifyTimeout.String())
	fmt.Fprintf(&b, "  webhook_url: %q\n\n", s.webhookURL)

	b.WriteString("archive:\n")
	fmt.Fprintf(&b, "  path: %q\n\n", s.archivePath)

	b.WriteString("reporting:\n")
	fmt.Fprintf(&b, "  schedule: %q\n\n", s.schedule)

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", s.logLevel)
	fmt.Fprintf(&b, "  format: %q\n", s.logFormat)
	return b.String()
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}
