package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// MaxPageLimit is the largest limit the backend accepts for list endpoints.
const MaxPageLimit = 100

func pageQuery(skip, limit int) url.Values {
	values := url.Values{}
	if skip > 0 {
		values.Set("skip", strconv.Itoa(skip))
	} else {
		values.Set("skip", "0")
	}
	if limit > 0 {
		if limit > MaxPageLimit {
			limit = MaxPageLimit
		}
		values.Set("limit", strconv.Itoa(limit))
	}
	return values
}

func jobPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("job id is required")
	}
	return "/jobs/" + url.PathEscape(id), nil
}

// ListJobs fetches one page of jobs. An empty page is reported by the
// backend as a 404.
func (c *Client) ListJobs(ctx context.Context, skip, limit int) ([]Job, error) {
	var jobs []Job
	if err := c.doJSON(ctx, http.MethodGet, "/jobs", pageQuery(skip, limit), nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob fetches a single job.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	p, err := jobPath(id)
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := c.doJSON(ctx, http.MethodGet, p, nil, nil, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// JobExists probes a job id: 200 means taken, 404 means free, and any other
// outcome is returned as an error.
func (c *Client) JobExists(ctx context.Context, id string) (bool, error) {
	_, err := c.GetJob(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// UpdateJob applies a partial update.
func (c *Client) UpdateJob(ctx context.Context, id string, update JobUpdate) (Job, error) {
	p, err := jobPath(id)
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := c.doJSON(ctx, http.MethodPut, p, nil, update, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// CancelJob marks a queued job cancelled.
func (c *Client) CancelJob(ctx context.Context, id string) (Job, error) {
	state := StateCancelled
	return c.UpdateJob(ctx, id, JobUpdate{State: &state})
}

// SubmitJob creates a job.
func (c *Client) SubmitJob(ctx context.Context, job JobSubmission) (SubmitResponse, error) {
	if strings.TrimSpace(job.JobID) == "" {
		return SubmitResponse{}, errors.New("job id is required")
	}
	if strings.TrimSpace(job.PresetID) == "" && strings.TrimSpace(job.Pipeline) == "" {
		return SubmitResponse{}, fmt.Errorf("job %s: preset or pipeline is required", job.JobID)
	}
	var out SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/submit_job", nil, job, &out); err != nil {
		return SubmitResponse{}, err
	}
	return out, nil
}
