package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ListPlaylists fetches shallow playlist entries, optionally filtered by name.
func (c *Client) ListPlaylists(ctx context.Context, q PlaylistQuery) ([]PlaylistSummary, error) {
	values := pageQuery(q.Skip, q.Limit)
	if v := strings.TrimSpace(q.Name); v != "" {
		values.Set("name", v)
	}
	var playlists []PlaylistSummary
	if err := c.doJSON(ctx, http.MethodGet, "/playlists", values, nil, &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// PlaylistExists reports whether a playlist with exactly name exists.
func (c *Client) PlaylistExists(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("playlist name is required")
	}
	playlists, err := c.ListPlaylists(ctx, PlaylistQuery{Name: name, Limit: MaxPageLimit})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	for _, p := range playlists {
		if p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// CreatePlaylist creates a playlist and one job per preset.
func (c *Client) CreatePlaylist(ctx context.Context, in PlaylistSubmission) (PlaylistCreated, error) {
	if strings.TrimSpace(in.Name) == "" {
		return PlaylistCreated{}, errors.New("playlist name is required")
	}
	if len(in.Presets) == 0 {
		return PlaylistCreated{}, errors.New("at least one preset is required")
	}
	var out PlaylistCreated
	if err := c.doJSON(ctx, http.MethodPost, "/playlists", nil, in, &out); err != nil {
		return PlaylistCreated{}, err
	}
	return out, nil
}
