// ABOUTME: Tickets command: lists and inspects escalation tickets in the SQLite archive
// ABOUTME: Read-only; the live queue belongs to the chat process that created the tickets

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/helpdesk/internal/escalation"
	"github.com/2389/helpdesk/internal/store"
)

var ticketsFlags struct {
	dbPath    string
	status    string
	sessionID string
	limit     int
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List archived escalation tickets",
	Args:  cobra.NoArgs,
	RunE:  runTicketsList,
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <ticket-id>",
	Short: "Show one archived ticket with its notes and transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketsShow,
}

func init() {
	pf := ticketsCmd.PersistentFlags()
	pf.StringVar(&ticketsFlags.dbPath, "db", "", "archive database (default archive.path from config)")

	f := ticketsCmd.Flags()
	f.StringVar(&ticketsFlags.status, "status", "", "only tickets with this status (open, in_progress, resolved, cancelled)")
	f.StringVar(&ticketsFlags.sessionID, "session", "", "only tickets for this session ID")
	f.IntVar(&ticketsFlags.limit, "limit", 0, "maximum tickets to list (0 for all)")

	ticketsCmd.AddCommand(ticketsShowCmd)
}

// openArchive opens the archive named by --db or the config file.
func openArchive() (*store.SQLiteStore, error) {
	path := ticketsFlags.dbPath
	if path == "" {
		cfg, _, err := loadConfig(rootFlags.configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Archive.Path
	}
	if path == "" {
		return nil, errors.New("no archive configured: set archive.path in the config or pass --db")
	}
	return store.NewSQLiteStore(path)
}

func runTicketsList(cmd *cobra.Command, _ []string) error {
	filter := store.TicketFilter{SessionID: ticketsFlags.sessionID, Limit: ticketsFlags.limit}
	if ticketsFlags.status != "" {
		status, err := escalation.ParseStatus(ticketsFlags.status)
		if err != nil {
			return err
		}
		filter.Status = string(status)
	}

	st, err := openArchive()
	if err != nil {
		return err
	}
	defer st.Close()

	tickets, err := st.ListTickets(cmd.Context(), filter)
	if err != nil {
		return err
	}
	writeTicketTable(cmd.OutOrStdout(), tickets)
	return nil
}

func writeTicketTable(out io.Writer, tickets []*store.TicketRecord) {
	if len(tickets) == 0 {
		fmt.Fprintln(out, "No tickets found.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRIORITY\tSTATUS\tCREATED\tASSIGNEE\tREASON")
	for _, t := range tickets {
		assignee := t.AssignedAgentName
		if assignee == "" {
			assignee = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			priorityLabel(t.Priority),
			t.Status,
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
			assignee,
			t.Reason)
	}
	tw.Flush()
}

func priorityLabel(p string) string {
	switch escalation.Priority(p) {
	case escalation.PriorityCritical, escalation.PriorityHigh:
		return color.RedString(p)
	case escalation.PriorityMedium:
		return color.YellowString(p)
	default:
		return p
	}
}

func runTicketsShow(cmd *cobra.Command, args []string) error {
	st, err := openArchive()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	t, err := st.GetTicket(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("ticket %s not found in archive", args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	bold.Fprintf(out, "Ticket %s\n", t.ID)
	fmt.Fprintf(out, "Session:   %s\n", t.SessionID)
	fmt.Fprintf(out, "Priority:  %s\n", priorityLabel(t.Priority))
	fmt.Fprintf(out, "Status:    %s\n", t.Status)
	fmt.Fprintf(out, "Reason:    %s\n", t.Reason)
	fmt.Fprintf(out, "Issue:     %s\n", t.CustomerIssue)
	fmt.Fprintf(out, "Response:  within %s\n", t.EstimatedResponseTime)
	fmt.Fprintf(out, "Created:   %s\n", t.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Updated:   %s\n", t.UpdatedAt.Local().Format(time.DateTime))
	if t.AssignedAgentName != "" {
		fmt.Fprintf(out, "Assignee:  %s (%s)\n", t.AssignedAgentName, t.AssignedAgentID)
	}

	if len(t.Summary) > 0 {
		var summary struct {
			AttemptedSteps  []string `json:"attempted_steps"`
			KeyUserMessages []string `json:"key_user_messages"`
		}
		if err := json.Unmarshal(t.Summary, &summary); err == nil {
			writeList(out, "Attempted steps", summary.AttemptedSteps)
			writeList(out, "Key customer messages", summary.KeyUserMessages)
		}
	}
	writeList(out, "Notes", t.Notes)

	transcript, err := st.GetTranscript(ctx, t.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	bold.Fprintln(out, "Transcript")
	for _, m := range transcript.Messages {
		fmt.Fprintf(out, "  [%s] %s: %s\n",
			m.CreatedAt.Local().Format(time.TimeOnly),
			m.Role,
			strings.ReplaceAll(m.Content, "\n", "\n    "))
	}
	return nil
}

func writeList(out io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(out, "  • %s\n", item)
	}
}
