package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

// Exit codes.
const (
	exitSuccess      = 0
	exitFailure      = 1 // the command ran but the outcome is negative (offline, nothing synced)
	exitCommandError = 2 // bad flags, unreadable config
)

// exitError carries a specific exit code.
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitError) Unwrap() error { return e.err }

func failure(msg string) error { return &exitError{code: exitFailure, msg: msg} }

func commandError(msg string, err error) error {
	return &exitError{code: exitCommandError, msg: msg, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tsString(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

func describe(p model.SetPayload) string {
	s := fmt.Sprintf("%gx%d %s", p.Weight, p.Reps, p.WeightUnit)
	if p.IsWarmup {
		s += " warmup"
	}
	return s
}

func printItems(w io.Writer, format string, items []model.QueueItem) error {
	if format == "json" {
		if items == nil {
			items = []model.QueueItem{}
		}
		return printJSON(w, items)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "nothing queued")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXERCISE\tSET\tSTATUS\tRETRIES\tNEXT RETRY\tERROR")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			it.ID, it.SessionExerciseID, describe(it.Payload), it.Status,
			it.RetryCount, tsString(it.NextRetryAt), it.LastError)
	}
	return tw.Flush()
}

func printSets(w io.Writer, sets []model.SetLog) error {
	if len(sets) == 0 {
		_, err := fmt.Fprintln(w, "no sets")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSET\tLOGGED\tID")
	for _, s := range sets {
		logged := s.LoggedAt
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.SetIndex+1, describe(s.Payload), tsString(&logged), s.ID)
	}
	return tw.Flush()
}
