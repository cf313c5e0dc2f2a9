package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

func presetPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("preset id is required")
	}
	return "/presets/" + url.PathEscape(id), nil
}

// ListPresets fetches one page of presets, optionally filtered by container
// types.
func (c *Client) ListPresets(ctx context.Context, q PresetQuery) ([]Preset, error) {
	values := pageQuery(q.Skip, q.Limit)
	if v := strings.TrimSpace(q.InputType); v != "" {
		values.Set("input_type", v)
	}
	if v := strings.TrimSpace(q.OutputType); v != "" {
		values.Set("output_type", v)
	}
	var presets []Preset
	if err := c.doJSON(ctx, http.MethodGet, "/presets", values, nil, &presets); err != nil {
		return nil, err
	}
	return presets, nil
}

func (c *Client) GetPreset(ctx context.Context, id string) (Preset, error) {
	p, err := presetPath(id)
	if err != nil {
		return Preset{}, err
	}
	var preset Preset
	if err := c.doJSON(ctx, http.MethodGet, p, nil, nil, &preset); err != nil {
		return Preset{}, err
	}
	return preset, nil
}

func (c *Client) CreatePreset(ctx context.Context, in PresetInput) (Preset, error) {
	var preset Preset
	if err := c.doJSON(ctx, http.MethodPost, "/presets", nil, in, &preset); err != nil {
		return Preset{}, err
	}
	return preset, nil
}

func (c *Client) UpdatePreset(ctx context.Context, id string, update PresetUpdate) (Preset, error) {
	p, err := presetPath(id)
	if err != nil {
		return Preset{}, err
	}
	var preset Preset
	if err := c.doJSON(ctx, http.MethodPut, p, nil, update, &preset); err != nil {
		return Preset{}, err
	}
	return preset, nil
}

// DeletePreset removes a preset and returns the deleted record.
func (c *Client) DeletePreset(ctx context.Context, id string) (Preset, error) {
	p, err := presetPath(id)
	if err != nil {
		return Preset{}, err
	}
	var preset Preset
	if err := c.doJSON(ctx, http.MethodDelete, p, nil, nil, &preset); err != nil {
		return Preset{}, err
	}
	return preset, nil
}
