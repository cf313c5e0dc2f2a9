package joblist

import (
	"sort"

	"transcoderctl/internal/api"
)

// SortJobs groups jobs by their most recently updated playlist. Groups are
// ordered by that playlist's updated_at descending, then playlist id; jobs
// inside a group by job_id. Jobs without a playlist come last, by job_id.
// The input slice is not modified.
func SortJobs(jobs []api.Job) []api.Job {
	type keyed struct {
		job      api.Job
		playlist api.PlaylistRef
		grouped  bool
	}
	rows := make([]keyed, len(jobs))
	for i, job := range jobs {
		ref, ok := job.LatestPlaylist()
		rows[i] = keyed{job: job, playlist: ref, grouped: ok}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if ra.grouped != rb.grouped {
			return ra.grouped
		}
		if ra.grouped && ra.playlist.ID != rb.playlist.ID {
			ta, tb := ra.playlist.UpdatedAt.Time, rb.playlist.UpdatedAt.Time
			if !ta.Equal(tb) {
				return ta.After(tb)
			}
			return ra.playlist.ID < rb.playlist.ID
		}
		return ra.job.JobID < rb.job.JobID
	})

	out := make([]api.Job, len(rows))
	for i, row := range rows {
		out[i] = row.job
	}
	return out
}
