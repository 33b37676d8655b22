package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/config"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/repository/memory"
	httpserver "github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/server/http"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/service"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/syncengine"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/todaycache"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"log", "sets", "pending", "rejected", "sync", "run", "status", "prune", "today", "token"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	v := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, v)
	assert.Equal(t, "v", v.Shorthand)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	f := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, f)
	assert.Equal(t, "text", f.DefValue)
}

// env is a server plus a client config pointing at it.
type env struct {
	configPath string
	url        string
}

var signKey = []byte("cli-test-key")

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	svc := service.NewSetLogService(memory.NewSetLogRepo(), 10, 5)
	ts := httptest.NewServer(httpserver.New(svc, signKey, zaptest.NewLogger(t)).Handler())
	t.Cleanup(ts.Close)

	tok, _, err := httpserver.IssueToken(signKey, uuid.Must(uuid.NewV4()), time.Hour)
	require.NoError(t, err)
	_, err = config.SaveToken(tok)
	require.NoError(t, err)

	e := &env{configPath: filepath.Join(dir, "config.toml"), url: ts.URL}
	e.writeConfig(t, ts.URL, filepath.Join(dir, "queue.db"))
	return e
}

func (e *env) writeConfig(t *testing.T, serverURL, dbPath string) {
	t.Helper()
	body := fmt.Sprintf("server_url = %q\ndb_path = %q\nprobe_interval = \"50ms\"\n", serverURL, dbPath)
	require.NoError(t, os.WriteFile(e.configPath, []byte(body), 0o600))
}

func (e *env) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLog_SyncsAndShowsToday(t *testing.T) {
	e := newEnv(t)
	session, se := uuid.Must(uuid.NewV4()).String(), uuid.Must(uuid.NewV4()).String()

	out, err := e.run(t, "", "--format", "json", "log", "--session", session, "--exercise", se, "-w", "100", "-r", "5")
	require.NoError(t, err)
	var res logResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, model.StatusSynced, res.Status)
	require.NotEmpty(t, res.ServerSetID)

	_, err = e.run(t, `{"weight":105,"reps":3,"weightUnit":"kg","notes":"paused"}`,
		"log", "--session", session, "--exercise", se, "--payload", "-")
	require.NoError(t, err)

	out, err = e.run(t, "", "--format", "json", "today", se)
	require.NoError(t, err)
	var today struct {
		Stale    bool                `json:"stale"`
		Snapshot todaycache.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &today))
	require.False(t, today.Stale)
	require.Len(t, today.Snapshot.Sets, 2)
	require.Equal(t, 1, today.Snapshot.Sets[1].SetIndex)
	require.Equal(t, "paused", *today.Snapshot.Sets[1].Payload.Notes)

	out, err = e.run(t, "", "pending")
	require.NoError(t, err)
	require.Contains(t, out, "nothing queued")
}

func TestLog_OfflineQueuesThenSyncDelivers(t *testing.T) {
	e := newEnv(t)
	dbPath := filepath.Join(t.TempDir(), "queue.db")
	down := httptest.NewServer(nil)
	downURL := down.URL
	down.Close()
	e.writeConfig(t, downURL, dbPath)

	session, se := uuid.Must(uuid.NewV4()).String(), uuid.Must(uuid.NewV4()).String()
	out, err := e.run(t, "", "log", "--session", session, "--exercise", se, "-w", "60", "-r", "10")
	require.NoError(t, err)
	require.Contains(t, out, "saved locally")

	out, err = e.run(t, "", "status")
	require.NoError(t, err)
	require.Contains(t, out, "Offline")

	_, err = e.run(t, "", "sync")
	require.Error(t, err)
	require.Equal(t, exitFailure, exitCode(err))

	out, err = e.run(t, "", "--format", "json", "pending")
	require.NoError(t, err)
	var pending []model.QueueItem
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)

	e.writeConfig(t, e.url, dbPath)
	out, err = e.run(t, "", "--format", "json", "sync")
	require.NoError(t, err)
	var rep syncengine.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, 1, rep.Synced)

	out, err = e.run(t, "", "--format", "json", "sets", se)
	require.NoError(t, err)
	var all []model.QueueItem
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all, 1)
	require.Equal(t, model.StatusSynced, all[0].Status)

	out, err = e.run(t, "", "prune", "--older-than", "0s")
	require.NoError(t, err)
	require.Contains(t, out, "removed 1")
}

func TestLog_RejectsInvalidInput(t *testing.T) {
	e := newEnv(t)
	session, se := uuid.Must(uuid.NewV4()).String(), uuid.Must(uuid.NewV4()).String()

	_, err := e.run(t, "", "log", "--session", "nope", "--exercise", se)
	require.Error(t, err)
	require.Equal(t, exitCommandError, exitCode(err))

	_, err = e.run(t, "", "log", "--session", session, "--exercise", se, "-w", "10", "-u", "stone")
	require.Error(t, err)
	require.Equal(t, exitCommandError, exitCode(err))

	_, err = e.run(t, `{"weight":1,"reps":1,"weightUnit":"kg","extra":true}`,
		"log", "--session", session, "--exercise", se, "--payload", "-")
	require.Error(t, err)
}

func TestBadFormat(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "", "--format", "yaml", "pending")
	require.Error(t, err)
	require.Equal(t, exitCommandError, exitCode(err))
}

func TestToken_Commands(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "token", "show")
	require.NoError(t, err)
	require.Contains(t, out, "token stored")

	_, err = e.run(t, "", "token", "clear")
	require.NoError(t, err)
	_, err = e.run(t, "", "token", "show")
	require.True(t, errors.Is(err, config.ErrNoToken))

	tok, _, err := httpserver.IssueToken(signKey, uuid.Must(uuid.NewV4()), time.Hour)
	require.NoError(t, err)
	out, err = e.run(t, "", "token", "set", tok)
	require.NoError(t, err)
	require.Contains(t, out, "saved, expires")
}

func TestPayloadFromFlags_OptionalMetrics(t *testing.T) {
	cmd := newLogCommand(&RootOptions{})
	require.NoError(t, cmd.ParseFlags([]string{"-w", "0", "-r", "0", "--duration", "90", "--notes", "", "-u", "LBS"}))

	lo := &logOptions{}
	lo.Duration, _ = cmd.Flags().GetInt("duration")
	lo.Unit, _ = cmd.Flags().GetString("unit")
	p := payloadFromFlags(cmd, lo)
	require.Equal(t, model.UnitLbs, p.WeightUnit)
	require.NotNil(t, p.DurationSeconds)
	require.Equal(t, 90, *p.DurationSeconds)
	require.NotNil(t, p.Notes)
	require.Empty(t, *p.Notes)
	require.Nil(t, p.Distance)
	require.Nil(t, p.Calories)
}
