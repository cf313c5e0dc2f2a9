package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transcoderctl/internal/api"
	"transcoderctl/internal/ledger"
)

func TestJobsListShowsPageAndCaches(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, env, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list (empty): %v", err)
	}
	requireContains(t, stderr, "No jobs found")

	for _, id := range []string{"b", "a"} {
		submitPipelineJob(t, env, id)
	}

	out, _, err := runCLI(t, env, "jobs", "list", "--json")
	if err != nil {
		t.Fatalf("jobs list --json: %v", err)
	}
	var jobs []api.Job
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("decode jobs: %v\n%s", err, out)
	}
	if len(jobs) != 2 || jobs[0].JobID != "a" || jobs[1].JobID != "b" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}

	out, _, err = runCLI(t, env, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "Queued")
	requireContains(t, out, "Page 1 (10 per page)")

	env.server.Close()
	out, _, err = runCLI(t, env, "jobs", "list", "--offline")
	if err != nil {
		t.Fatalf("jobs list --offline: %v", err)
	}
	requireContains(t, out, "Cached page 1 (10 per page)")
	requireContains(t, out, "a")
}

func TestJobsListRejectsUnknownPageSize(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "jobs", "list", "--page-size", "7"); err == nil {
		t.Fatal("expected page size error")
	}
}

func TestJobsShowAndCancel(t *testing.T) {
	env := setupCLITestEnv(t)
	submitPipelineJob(t, env, "clip")

	out, _, err := runCLI(t, env, "jobs", "show", "clip")
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "clip_out.mp4")

	_, _, err = runCLI(t, env, "jobs", "show", "missing")
	if err == nil || !strings.Contains(err.Error(), "job missing not found") {
		t.Fatalf("expected not found error, got %v", err)
	}

	out, _, err = runCLI(t, env, "jobs", "cancel", "clip")
	if err != nil {
		t.Fatalf("jobs cancel: %v", err)
	}
	requireContains(t, out, "Job clip cancelled")

	job, ok := env.backend.Job("clip")
	if !ok || job.State != api.StateCancelled {
		t.Fatalf("expected cancelled job, got %+v", job)
	}

	if _, _, err := runCLI(t, env, "jobs", "cancel", "clip"); err == nil {
		t.Fatal("expected second cancel to fail")
	}
}

func TestSubmitUploadsAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	preset := env.backend.AddPreset(api.PresetInput{
		Name:       "mkv to mp4",
		InputType:  "mkv",
		OutputType: "mp4",
		Pipeline:   "filesrc location={{input_file}} ! {{progress}} ! filesink location={{output_file}}",
	})
	src := writeSource(t, env.baseDir, "movie.mkv", "matroska bytes")

	out, stderr, err := runCLI(t, env, "submit", "--id", "movie", "--file", src, "--preset", "mkv to mp4", "--json")
	if err != nil {
		t.Fatalf("submit: %v\n%s", err, stderr)
	}
	var result submitResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode submit result: %v\n%s", err, out)
	}
	if result.InputS3Path != "movie_in.mkv" || result.OutputS3Path != "movie_out.mp4" || result.PresetID != preset.PresetID {
		t.Fatalf("unexpected submit result %+v", result)
	}
	requireContains(t, stderr, "Job submitted successfully!")

	data, ok := env.backend.Object("movie_in.mkv")
	if !ok || string(data) != "matroska bytes" {
		t.Fatalf("uploaded object = %q, %v", data, ok)
	}

	_, _, err = runCLI(t, env, "submit", "--id", "movie", "--file", src, "--preset", preset.PresetID)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	out, _, err = runCLI(t, env, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var subs []ledger.Submission
	if err := json.Unmarshal([]byte(out), &subs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(subs) != 1 || subs[0].Name != "movie" || subs[0].Kind != ledger.KindJob {
		t.Fatalf("unexpected history %+v", subs)
	}
}

func TestSubmitWithPipelineDerivesOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	src := writeSource(t, env.baseDir, "talk.mp4", "mp4 bytes")

	out, _, err := runCLI(t, env, "submit", "--id", "talk", "--file", src,
		"--pipeline", "filesrc location={{input_file}} ! {{progress}} ! filesink location={{output_file}}")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Submitted job talk")
	requireContains(t, out, "talk_out.mp4")

	if _, _, err := runCLI(t, env, "submit", "--id", "x", "--file", src); err == nil {
		t.Fatal("expected missing recipe error")
	}

	out, _, err = runCLI(t, env, "logs", "--job", "talk", "--component", "submission")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "[submission] uploading source")
	requireContains(t, out, "job_id=talk")
}

func TestJobsDownloadCompletedOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.PutObject("clip_in.mp4", []byte("transcoded"))
	submitPipelineJob(t, env, "clip")

	if _, _, err := runCLI(t, env, "jobs", "download", "clip"); err == nil {
		t.Fatal("expected queued job download to fail")
	}

	if err := env.backend.CompleteJob("clip", api.StateCompleted, "", ""); err != nil {
		t.Fatalf("complete job: %v", err)
	}
	dest := filepath.Join(env.baseDir, "out")
	out, _, err := runCLI(t, env, "jobs", "download", "clip", "--output", dest)
	if err != nil {
		t.Fatalf("jobs download: %v", err)
	}
	requireContains(t, out, "Downloaded clip")

	data, err := os.ReadFile(filepath.Join(dest, "clip_out.mp4"))
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "transcoded" {
		t.Fatalf("download content = %q", data)
	}
}

func TestPresetsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, env, "presets", "list")
	if err != nil {
		t.Fatalf("presets list (empty): %v", err)
	}
	requireContains(t, stderr, "No presets found")

	_, _, err = runCLI(t, env, "presets", "create", "--name", "broken", "--input-type", "mp4")
	if err == nil || !strings.Contains(err.Error(), "all fields are required (missing: ") {
		t.Fatalf("expected missing fields error, got %v", err)
	}

	presetFile := filepath.Join(env.baseDir, "preset.toml")
	content := `name = "720p"
input_type = "mp4"
output_type = "mkv"
resolution = "1280x720"
video_encoding = "x265"
video_bitrate = "1 mbit"
audio_encoding = "aac"
audio_bitrate = "128 kbit"
`
	if err := os.WriteFile(presetFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset file: %v", err)
	}
	out, _, err := runCLI(t, env, "presets", "create", "--file", presetFile, "--name", "720p mkv", "--json")
	if err != nil {
		t.Fatalf("presets create: %v", err)
	}
	var created api.Preset
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode preset: %v\n%s", err, out)
	}
	if created.Name != "720p mkv" || created.Resolution != "1280x720" || created.PresetID == "" {
		t.Fatalf("unexpected preset %+v", created)
	}

	out, _, err = runCLI(t, env, "presets", "list", "--output-type", "mkv")
	if err != nil {
		t.Fatalf("presets list: %v", err)
	}
	requireContains(t, out, "720p mkv")

	out, _, err = runCLI(t, env, "presets", "show", "720p mkv")
	if err != nil {
		t.Fatalf("presets show: %v", err)
	}
	requireContains(t, out, "{{progress}}")

	out, _, err = runCLI(t, env, "presets", "delete", created.PresetID)
	if err != nil {
		t.Fatalf("presets delete: %v", err)
	}
	requireContains(t, out, "Deleted preset 720p mkv")

	if _, _, err := runCLI(t, env, "presets", "delete", created.PresetID); err == nil {
		t.Fatal("expected second delete to fail")
	}
}

func TestPlaylistsCreateAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	pipeline := "filesrc location={{input_file}} ! {{progress}} ! filesink location={{output_file}}"
	first := env.backend.AddPreset(api.PresetInput{Name: "first", InputType: "mp4", OutputType: "mp4", Pipeline: pipeline})
	second := env.backend.AddPreset(api.PresetInput{Name: "second", InputType: "mp4", OutputType: "mkv", Pipeline: pipeline})
	src := writeSource(t, env.baseDir, "show.mp4", "episode")

	out, stderr, err := runCLI(t, env, "playlists", "create", "--name", "season",
		"--file", src, "--preset", first.PresetID, "--preset", "second")
	if err != nil {
		t.Fatalf("playlists create: %v\n%s", err, stderr)
	}
	requireContains(t, out, "with 2 jobs")
	requireContains(t, out, "season-0")
	requireContains(t, out, "season-1")

	if _, ok := env.backend.Object("season_in.mp4"); !ok {
		t.Fatal("expected playlist source upload")
	}
	job, ok := env.backend.Job("season-1")
	if !ok || job.PresetID != second.PresetID {
		t.Fatalf("unexpected playlist job %+v", job)
	}

	out, _, err = runCLI(t, env, "playlists", "list", "--name", "season")
	if err != nil {
		t.Fatalf("playlists list: %v", err)
	}
	requireContains(t, out, "season")

	_, _, err = runCLI(t, env, "playlists", "create", "--name", "season", "--file", src, "--preset", first.PresetID)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate playlist error, got %v", err)
	}

	out, _, err = runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "playlist")
	requireContains(t, out, "2 jobs")
}

func TestJobsWatchUntilIdle(t *testing.T) {
	env := setupCLITestEnv(t)
	submitPipelineJob(t, env, "a")
	submitPipelineJob(t, env, "b")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go env.backend.RunWorker(ctx, 20*time.Millisecond, 25)

	out, stderr, err := runCLIContext(ctx, env, "jobs", "watch", "--until-idle", "--interval", "50ms")
	if err != nil {
		t.Fatalf("jobs watch: %v\n%s", err, stderr)
	}
	requireContains(t, out, "No queued or in-progress jobs on this page")
	for _, id := range []string{"a", "b"} {
		job, ok := env.backend.Job(id)
		if !ok || job.State != api.StateCompleted {
			t.Fatalf("job %s not completed: %+v", id, job)
		}
	}
}

func TestJobsWatchHoldsLock(t *testing.T) {
	env := setupCLITestEnv(t)
	submitPipelineJob(t, env, "a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := runCLIContext(ctx, env, "jobs", "watch", "--interval", "20ms")
		done <- err
	}()

	lockPath := filepath.Join(env.baseDir, "data", "watch.lock")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(lockPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("watch lock never created")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, _, err := runCLI(t, env, "jobs", "watch", "--until-idle")
	if err == nil || !strings.Contains(err.Error(), "already running") {
		cancel()
		t.Fatalf("expected lock error, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch exited with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.server.URL)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwrite")
	}
}

func TestStatusReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "Backend")
	requireContains(t, out, "reachable, no presets")
	requireContains(t, out, "Ledger")

	env.server.Close()
	out, _, err = runCLI(t, env, "status")
	if err == nil {
		t.Fatalf("expected status to fail with backend down\n%s", out)
	}
	requireContains(t, out, "FAIL")
}

func TestSandboxCommandServesUntilCancelled(t *testing.T) {
	env := setupCLITestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	out := &syncBuffer{}
	go func() {
		cmd := newRootCommand()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs([]string{"--config", env.configPath, "sandbox", "--bind", "127.0.0.1:0", "--tick", "0"})
		done <- cmd.ExecuteContext(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "Sandbox backend listening") {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("sandbox never reported listening: %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sandbox exited with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sandbox did not stop")
	}
}
