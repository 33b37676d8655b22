package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/app"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/convert"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/queue"
)

const syncTimeout = 15 * time.Second

type logOptions struct {
	*RootOptions
	Session     string
	Exercise    string
	Weight      float64
	Reps        int
	Unit        string
	Warmup      bool
	Duration    int
	Distance    float64
	Calories    float64
	Notes       string
	PayloadFile string
	ClientLogID string
	NoSync      bool
}

// logResult is what `setlog log` reports.
type logResult struct {
	QueueItemID string            `json:"queueItemId,omitempty"`
	ClientLogID string            `json:"clientLogId"`
	Status      model.QueueStatus `json:"status"`
	ServerSetID string            `json:"serverSetId,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func newLogCommand(root *RootOptions) *cobra.Command {
	opts := &logOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record one set",
		Long: `Record one set. The set is written to the local queue first and then,
unless --no-sync is given, one sync pass is attempted.

Examples:
  setlog log --session S --exercise E --weight 100 --reps 5
  setlog log --session S --exercise E --payload set.json
  echo '{"weight":60,"reps":10,"weightUnit":"kg"}' | setlog log --session S --exercise E --payload -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Session, "session", "", "workout session id (required)")
	f.StringVar(&opts.Exercise, "exercise", "", "session exercise id (required)")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("exercise")
	f.Float64VarP(&opts.Weight, "weight", "w", 0, "weight")
	f.IntVarP(&opts.Reps, "reps", "r", 0, "repetitions")
	f.StringVarP(&opts.Unit, "unit", "u", string(model.UnitKg), "weight unit (kg|lbs)")
	f.BoolVar(&opts.Warmup, "warmup", false, "mark as warm-up set")
	f.IntVar(&opts.Duration, "duration", 0, "duration in seconds")
	f.Float64Var(&opts.Distance, "distance", 0, "distance")
	f.Float64Var(&opts.Calories, "calories", 0, "calories")
	f.StringVar(&opts.Notes, "notes", "", "free-text notes")
	f.StringVar(&opts.PayloadFile, "payload", "", "read the set payload as JSON from a file, - for stdin")
	f.StringVar(&opts.ClientLogID, "client-log-id", "", "idempotency id of this action (generated when empty)")
	f.BoolVar(&opts.NoSync, "no-sync", false, "only queue, do not contact the server")

	return cmd
}

func runLog(cmd *cobra.Command, opts *logOptions) error {
	in, err := buildInput(cmd, opts)
	if err != nil {
		return commandError("invalid set", err)
	}

	c, err := openClient(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := logSet(cmd.Context(), c, in, !opts.NoSync)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return printJSON(out, res)
	}
	switch res.Status {
	case model.StatusSynced:
		fmt.Fprintf(out, "synced as set %s\n", res.ServerSetID)
	case model.StatusRejected:
		fmt.Fprintf(out, "rejected by server: %s\n", res.Error)
	default:
		fmt.Fprintf(out, "saved locally (%s)\n", res.Status)
	}
	return nil
}

// logSet queues in and optionally syncs. Without durable storage the set goes
// straight to the server since nothing would be left to retry.
func logSet(ctx context.Context, c *app.Client, in queue.EnqueueInput, sync bool) (logResult, error) {
	if !c.StorageAvailable() {
		sctx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()
		it := model.QueueItem{
			ClientLogID:       in.ClientLogID,
			SessionID:         in.SessionID,
			SessionExerciseID: in.SessionExerciseID,
			Payload:           in.Payload,
			CreatedAt:         in.CreatedAt,
		}
		res := logResult{ClientLogID: in.ClientLogID.String()}
		id, err := c.API.Append(sctx, convert.ToWireAppend(it))
		if err != nil {
			return res, failure(fmt.Sprintf("storage unavailable and append failed: %v", err))
		}
		res.Status = model.StatusSynced
		res.ServerSetID = id.String()
		return res, nil
	}

	it, err := c.LogSet(ctx, in)
	if err != nil {
		return logResult{}, commandError("queue set", err)
	}
	if sync {
		sctx, cancel := context.WithTimeout(ctx, syncTimeout)
		c.SyncOnce(sctx)
		cancel()
		if fresh, ok := findItem(ctx, c.Queue, it); ok {
			it = fresh
		}
	}

	res := logResult{
		QueueItemID: it.ID.String(),
		ClientLogID: it.ClientLogID.String(),
		Status:      it.Status,
		Error:       it.LastError,
	}
	if it.ServerSetID != nil {
		res.ServerSetID = it.ServerSetID.String()
	}
	return res, nil
}

func findItem(ctx context.Context, store queue.Store, it model.QueueItem) (model.QueueItem, bool) {
	items, err := store.ReadBySessionExerciseID(ctx, it.SessionExerciseID)
	if err != nil {
		return model.QueueItem{}, false
	}
	for _, x := range items {
		if x.ID == it.ID {
			return x, true
		}
	}
	return model.QueueItem{}, false
}

func buildInput(cmd *cobra.Command, opts *logOptions) (queue.EnqueueInput, error) {
	var in queue.EnqueueInput
	var err error
	if in.SessionID, err = uuid.FromString(strings.TrimSpace(opts.Session)); err != nil {
		return in, fmt.Errorf("--session: %w", err)
	}
	if in.SessionExerciseID, err = uuid.FromString(strings.TrimSpace(opts.Exercise)); err != nil {
		return in, fmt.Errorf("--exercise: %w", err)
	}
	if opts.ClientLogID != "" {
		if in.ClientLogID, err = uuid.FromString(strings.TrimSpace(opts.ClientLogID)); err != nil {
			return in, fmt.Errorf("--client-log-id: %w", err)
		}
	} else if in.ClientLogID, err = uuid.NewV4(); err != nil {
		return in, err
	}
	in.CreatedAt = time.Now().UTC()

	if opts.PayloadFile != "" {
		raw, err := readAll(cmd.InOrStdin(), opts.PayloadFile)
		if err != nil {
			return in, fmt.Errorf("read payload: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in.Payload); err != nil {
			return in, fmt.Errorf("decode payload: %w", err)
		}
		if in.Payload.WeightUnit == "" {
			in.Payload.WeightUnit = model.UnitKg
		}
	} else {
		in.Payload = payloadFromFlags(cmd, opts)
	}

	if err := in.Payload.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

func payloadFromFlags(cmd *cobra.Command, opts *logOptions) model.SetPayload {
	p := model.SetPayload{
		Weight:     opts.Weight,
		Reps:       opts.Reps,
		IsWarmup:   opts.Warmup,
		WeightUnit: model.WeightUnit(strings.ToLower(strings.TrimSpace(opts.Unit))),
	}
	f := cmd.Flags()
	if f.Changed("duration") {
		d := opts.Duration
		p.DurationSeconds = &d
	}
	if f.Changed("distance") {
		d := opts.Distance
		p.Distance = &d
	}
	if f.Changed("calories") {
		c := opts.Calories
		p.Calories = &c
	}
	if f.Changed("notes") {
		n := opts.Notes
		p.Notes = &n
	}
	return p
}

func readAll(stdin io.Reader, p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}
