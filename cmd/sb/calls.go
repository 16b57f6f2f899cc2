package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/calllog"
	"github.com/zulandar/switchboard/internal/intake"
	"github.com/zulandar/switchboard/internal/models"
	"golang.org/x/term"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// timeLayout is human-friendly on a terminal and RFC 3339 when piped.
func timeLayout(w io.Writer) string {
	if isTerminal(w) {
		return "2006-01-02 15:04"
	}
	return time.RFC3339
}

func openStore(configPath string) (*calllog.Store, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	return calllog.NewStore(gormDB, cfg.Intake.LeadTypes), nil
}

func newCallsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Inspect and correct logged calls",
	}

	cmd.AddCommand(newCallsListCmd())
	cmd.AddCommand(newCallsShowCmd())
	cmd.AddCommand(newCallsCorrectCmd())
	return cmd
}

func newCallsListCmd() *cobra.Command {
	var (
		configPath string
		f          calllog.Filter
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logged calls, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			return runCallsList(cmd, configPath, f)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&f.Status, "status", "", "filter by status (completed, escalated, abandoned)")
	cmd.Flags().StringVar(&f.LeadType, "lead-type", "", "filter by lead type")
	cmd.Flags().StringVar(&f.Urgency, "urgency", "", "filter by urgency level")
	cmd.Flags().StringVar(&f.Phone, "phone", "", "filter by patient phone")
	cmd.Flags().DurationVar(&since, "since", 0, "only calls logged within this duration (e.g. 24h)")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum number of calls")
	return cmd
}

func runCallsList(cmd *cobra.Command, configPath string, f calllog.Filter) error {
	store, err := openStore(configPath)
	if err != nil {
		return err
	}
	calls, err := store.List(context.Background(), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(calls) == 0 {
		fmt.Fprintln(out, "No calls found.")
		return nil
	}

	layout := timeLayout(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REF\tLOGGED\tSTATUS\tLEAD TYPE\tURGENCY\tPHONE\tESCALATION")
	for _, c := range calls {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ReferenceID, c.LoggedAt.Local().Format(layout), c.Status,
			dash(c.LeadType), dash(c.Urgency), dash(c.Phone), escalationLabel(c))
	}
	return w.Flush()
}

func escalationLabel(c models.CallRecord) string {
	if c.EscalationAction == "" {
		return "-"
	}
	return c.EscalationAction + "/" + c.EscalationReason
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newCallsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <reference-id>",
		Short: "Show a logged call with its transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallsShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runCallsShow(cmd *cobra.Command, configPath, ref string) error {
	store, err := openStore(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	c, err := store.Get(ctx, ref)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printCall(out, c)

	escalations, err := store.Escalations(ctx, ref)
	if err != nil {
		return err
	}
	if len(escalations) > 0 {
		fmt.Fprintln(out, "\nEscalations:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tACTION\tREASON\tSTATUS\tERROR")
		for _, e := range escalations {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", e.ID, e.Action, e.Reason, e.Status, dash(e.Error))
		}
		w.Flush()
	}
	return nil
}

func printCall(out io.Writer, c *models.CallRecord) {
	layout := timeLayout(out)
	fmt.Fprintf(out, "Reference:   %s\n", c.ReferenceID)
	if c.Supersedes != nil {
		fmt.Fprintf(out, "Supersedes:  %s\n", *c.Supersedes)
	}
	fmt.Fprintf(out, "Status:      %s (%s)\n", c.Status, c.FinalState)
	fmt.Fprintf(out, "Patient:     %s\n", dash(c.PatientName))
	fmt.Fprintf(out, "Phone:       %s\n", dash(c.Phone))
	fmt.Fprintf(out, "Origin:      %s\n", dash(c.Origin))
	fmt.Fprintf(out, "Language:    %s\n", dash(c.Language))
	fmt.Fprintf(out, "Lead type:   %s\n", dash(c.LeadType))
	fmt.Fprintf(out, "Urgency:     %s\n", dash(c.Urgency))
	switch {
	case c.CallbackDeclined:
		fmt.Fprintln(out, "Callback:    declined")
	case c.CallbackTime != "":
		fmt.Fprintf(out, "Callback:    %s\n", c.CallbackTime)
	}
	if c.EscalationAction != "" {
		fmt.Fprintf(out, "Escalation:  %s\n", escalationLabel(*c))
	}
	fmt.Fprintf(out, "Duration:    %s\n", time.Duration(c.DurationSec)*time.Second)
	fmt.Fprintf(out, "Started:     %s\n", c.StartedAt.Local().Format(layout))
	fmt.Fprintf(out, "Logged:      %s\n", c.LoggedAt.Local().Format(layout))
	if c.Notes != "" {
		fmt.Fprintf(out, "\nNotes:\n%s\n", c.Notes)
	}

	if len(c.Transitions) > 0 {
		fmt.Fprintln(out, "\nTransitions:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, t := range c.Transitions {
			fmt.Fprintf(w, "  %d\t%s -> %s\t%s\n", t.Sequence, t.FromState, t.ToState, t.Trigger)
		}
		w.Flush()
	}
	if c.Transcript != "" {
		fmt.Fprintf(out, "\nTranscript:\n%s\n", c.Transcript)
	}
}

func newCallsCorrectCmd() *cobra.Command {
	var (
		configPath string
		sets       []string
	)

	cmd := &cobra.Command{
		Use:   "correct <reference-id>",
		Short: "Record a correction to a logged call",
		Long: `Validates the given field values and logs a new call record that
supersedes the original. The original record is never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallsCorrect(cmd, configPath, args[0], sets)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value to change (repeatable)")
	return cmd
}

// parseSets turns field=value flags into a change set.
func parseSets(sets []string) (map[intake.Field]string, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("at least one --set field=value is required")
	}
	changes := make(map[intake.Field]string, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q: want field=value", s)
		}
		changes[intake.Field(strings.TrimSpace(k))] = v
	}
	return changes, nil
}

func runCallsCorrect(cmd *cobra.Command, configPath, ref string, sets []string) error {
	changes, err := parseSets(sets)
	if err != nil {
		return err
	}
	store, err := openStore(configPath)
	if err != nil {
		return err
	}
	rec, err := store.Correct(context.Background(), ref, changes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged correction %s (supersedes %s)\n", rec.ReferenceID, ref)
	return nil
}

func newCallbacksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callbacks",
		Short: "Work the pending callback queue",
	}

	cmd.AddCommand(newCallbacksListCmd())
	cmd.AddCommand(newCallbacksDoneCmd())
	return cmd
}

func newCallbacksListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List callbacks not yet completed, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(configPath)
			if err != nil {
				return err
			}
			pending, err := store.PendingCallbacks(context.Background())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending callbacks.")
				return nil
			}
			layout := timeLayout(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tREF\tRAISED\tWINDOW\tPHONE\tPREFERS\tSTATUS")
			for _, e := range pending {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.ReferenceID, e.CreatedAt.Local().Format(layout),
					dash(e.TargetWindow), dash(e.Phone), dash(e.PreferredTime), e.Status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func newCallbacksDoneCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a callback as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid callback id %q", args[0])
			}
			store, err := openStore(configPath)
			if err != nil {
				return err
			}
			if err := store.CompleteCallback(context.Background(), uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Callback %d marked done\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}
