package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"transcoderctl/internal/alerts"
	"transcoderctl/internal/api"
	"transcoderctl/internal/joblist"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const timeLayout = "2006-01-02 15:04:05"

var titleCaser = cases.Title(language.Und)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stateLabel turns "in-progress" into "In Progress".
func stateLabel(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(state, "-", " "))
}

func stateColor(state string) string {
	switch state {
	case api.StateCompleted:
		return ansiGreen
	case api.StateFailed, api.StateCancelled:
		return ansiRed
	case api.StateInProgress:
		return ansiBlue
	case api.StateStalled:
		return ansiYellow
	default:
		return ""
	}
}

func renderState(state string, colorize bool) string {
	label := stateLabel(state)
	if colorize {
		if color := stateColor(state); color != "" {
			return color + label + ansiReset
		}
	}
	return label
}

func renderAlert(a alerts.Alert, colorize bool) string {
	prefix := "ok"
	color := ansiGreen
	if a.Kind == alerts.KindError {
		prefix = "error"
		color = ansiRed
	}
	line := fmt.Sprintf("[%s] %s", prefix, a.Message)
	if colorize {
		return color + line + ansiReset
	}
	return line
}

func formatTimestamp(ts api.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(timeLayout)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func formatProgress(row joblist.Row) string {
	switch {
	case row.HasProgress:
		return fmt.Sprintf("%.1f%%", row.Progress)
	case row.Job.State == api.StateCompleted:
		return "100%"
	default:
		return "-"
	}
}

func playlistLabel(job api.Job) string {
	ref, ok := job.LatestPlaylist()
	if !ok {
		return "-"
	}
	return ref.Name
}

func valueOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func buildJobRows(rows []joblist.Row, colorize bool) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		job := row.Job
		out = append(out, []string{
			job.JobID,
			renderState(job.State, colorize),
			formatProgress(row),
			valueOrDash(job.PresetName()),
			playlistLabel(job),
			formatTimestamp(job.CreatedAt),
			formatDuration(job.Duration()),
		})
	}
	return out
}

var jobHeaders = []string{"Job ID", "State", "Progress", "Preset", "Playlist", "Created", "Duration"}

var jobAligns = []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight}

func rowsFromJobs(jobs []api.Job) []joblist.Row {
	rows := make([]joblist.Row, len(jobs))
	for i, job := range jobs {
		rows[i] = joblist.Row{Job: job}
	}
	return rows
}
