// ABOUTME: Interactive chat command: reads user turns and prints replies
// ABOUTME: Handles exit, escalate, help and status commands between turns

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/helpdesk/internal/conversation"
	"github.com/2389/helpdesk/internal/responder"
	"github.com/2389/helpdesk/internal/session"
)

var chatFlags struct {
	delay time.Duration
	quiet bool
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive support session",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	f := chatCmd.Flags()
	f.DurationVar(&chatFlags.delay, "delay", 0, "simulated thinking time before each reply")
	f.BoolVar(&chatFlags.quiet, "quiet", false, "skip the banner")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configPath, err := loadConfig(rootFlags.configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	out := cmd.OutOrStdout()
	if !chatFlags.quiet {
		color.New(color.FgCyan).Fprint(out, banner)
		gray := color.New(color.FgHiBlack)
		gray.Fprintf(out, "    version: %s\n", version)
		if configPath != "" {
			gray.Fprintf(out, "    config:  %s\n", configPath)
		}
		if cfg.Archive.Path != "" {
			gray.Fprintf(out, "    archive: %s\n", cfg.Archive.Path)
		}
		fmt.Fprintln(out)
	}

	gen := &responder.Keyword{Threshold: cfg.Conversation.EscalationThreshold, Delay: chatFlags.delay}
	a, err := newApp(cfg, logger, gen, out)
	if err != nil {
		return err
	}
	defer a.Close()
	a.runBackground(ctx)

	return chatLoop(ctx, a.orch, cmd.InOrStdin(), out)
}

// chatLoop runs one session until the user exits, escalates, input ends or ctx is done.
func chatLoop(ctx context.Context, orch *conversation.Orchestrator, in io.Reader, out io.Writer) error {
	sess := orch.Start()
	printWelcome(out)

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	green := color.New(color.FgGreen, color.Bold)
	for {
		green.Fprint(out, "You: ")

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nChat session ended. Thank you for using Tech Support!")
			_, _ = orch.End(sess.ID)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out)
			printSummary(out, orch, sess.ID)
			return nil
		}

		switch conversation.ParseCommand(line) {
		case conversation.CommandExit:
			printSummary(out, orch, sess.ID)
			return nil
		case conversation.CommandEscalate:
			return escalate(ctx, out, orch, sess.ID)
		case conversation.CommandHelp:
			printHelp(out)
			continue
		case conversation.CommandStatus:
			printStatus(out, orch, sess.ID)
			continue
		}

		result, err := orch.ProcessTurn(ctx, sess.ID, line)
		if errors.Is(err, conversation.ErrEmptyMessage) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, session.ErrNotFound) {
				return err
			}
			color.New(color.FgRed).Fprintf(out, "Sorry, I encountered an error: %v\n", err)
			fmt.Fprintln(out, "Please try again or type 'escalate' for human assistance.")
			continue
		}
		printTurn(out, result)
	}
}

func escalate(ctx context.Context, out io.Writer, orch *conversation.Orchestrator, sessionID string) error {
	ticket, err := orch.Escalate(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("escalating: %w", err)
	}
	fmt.Fprintf(out, "\nYour request has been escalated to a human specialist (ticket %s).\n", ticket.ID)
	fmt.Fprintf(out, "Expected response within %s.\n", ticket.EstimatedResponseTime)
	fmt.Fprintln(out, "Thank you for using Tech Support!")
	_, _ = orch.End(sessionID)
	return nil
}

func printWelcome(out io.Writer) {
	fmt.Fprintln(out, "Welcome! I'm here to help you with technical issues.")
	fmt.Fprintln(out, "Please describe your problem, and I'll do my best to assist you.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands: 'exit' ends the session, 'escalate' requests a human, 'help' shows more.")
	fmt.Fprintln(out)
}

func printTurn(out io.Writer, result *conversation.TurnResult) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(out)
	cyan.Fprint(out, "Agent: ")
	fmt.Fprintln(out, result.Response.ResponseText)

	if len(result.Response.SuggestedActions) > 0 {
		fmt.Fprintln(out, "\nSuggested actions:")
		for _, action := range result.Response.SuggestedActions {
			fmt.Fprintf(out, "  • %s\n", action)
		}
	}
	fmt.Fprintln(out)

	yellow := color.New(color.FgYellow)
	if result.MaxTurnsReached {
		yellow.Fprintln(out, "This conversation has reached the maximum length.")
		fmt.Fprintln(out, "Type 'escalate' to connect with a specialist, or 'exit' to end the session.")
		fmt.Fprintln(out)
	}
	if result.Ticket != nil {
		yellow.Fprintf(out, "A specialist has been requested for you (ticket %s, %s priority).\n",
			result.Ticket.ID, result.Ticket.Priority)
		fmt.Fprintln(out)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out)
	color.New(color.Bold).Fprintln(out, "Help")
	fmt.Fprint(out, conversation.HelpText)
	fmt.Fprintln(out)
}

func printStatus(out io.Writer, orch *conversation.Orchestrator, sessionID string) {
	status, err := orch.Status(sessionID)
	if err != nil {
		fmt.Fprintf(out, "No status available: %v\n", err)
		return
	}
	fmt.Fprintln(out)
	color.New(color.Bold).Fprintln(out, "Session Status")
	fmt.Fprintf(out, "Session ID:       %s\n", status.SessionID)
	fmt.Fprintf(out, "Started:          %s UTC\n", status.StartTime.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current Issue:    %s\n", status.CurrentIssue)
	fmt.Fprintf(out, "Messages:         %d\n", status.TotalMessages)
	fmt.Fprintf(out, "Escalation Count: %d\n", status.EscalationCount)
	fmt.Fprintf(out, "Duration:         %s\n", clock(status.Duration))
	fmt.Fprintln(out)
}

func printSummary(out io.Writer, orch *conversation.Orchestrator, sessionID string) {
	final, err := orch.End(sessionID)
	if err != nil {
		return
	}
	fmt.Fprintln(out)
	color.New(color.Bold).Fprintln(out, "Session Summary")
	fmt.Fprintf(out, "Session Duration: %s\n", clock(final.Duration))
	fmt.Fprintf(out, "Total Messages:   %d\n", final.TotalMessages)
	fmt.Fprintf(out, "Issue:            %s\n", final.CurrentIssue)
	fmt.Fprintf(out, "Steps Attempted:  %d\n", final.AttemptedStepsCount)
	fmt.Fprintln(out, "\nThank you for using Tech Support Chat Agent!")
}

// clock formats a duration as hh:mm:ss.
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}
