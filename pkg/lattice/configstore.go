package lattice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Configs returns the identifiers of all configuration objects.
func (c *Client) Configs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.invoke(ctx, http.MethodGet, "/configs", nil, nil, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Config returns one configuration object. An unknown id fails with a
// *RemoteError satisfying IsNotFound.
func (c *Client) Config(ctx context.Context, configID string) (JSONObject, error) {
	var cfg JSONObject
	path := fmt.Sprintf("/config/%s", url.PathEscape(configID))
	if err := c.invoke(ctx, http.MethodGet, path, nil, nil, nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PutConfig replaces a configuration object and returns the stored value.
// With validate set the core validates the object against its config model
// before storing it.
func (c *Client) PutConfig(ctx context.Context, configID string, cfg JSONObject, validate bool) (JSONObject, error) {
	query := url.Values{"validate": []string{strconv.FormatBool(validate)}}
	path := fmt.Sprintf("/config/%s", url.PathEscape(configID))

	var stored JSONObject
	if err := c.invoke(ctx, http.MethodPut, path, query, cfg, nil, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// PatchConfig merges cfg into an existing configuration object and returns
// the result.
func (c *Client) PatchConfig(ctx context.Context, configID string, cfg JSONObject) (JSONObject, error) {
	path := fmt.Sprintf("/config/%s", url.PathEscape(configID))
	var patched JSONObject
	if err := c.invoke(ctx, http.MethodPatch, path, nil, cfg, nil, &patched); err != nil {
		return nil, err
	}
	return patched, nil
}

// DeleteConfig removes a configuration object.
func (c *Client) DeleteConfig(ctx context.Context, configID string) error {
	path := fmt.Sprintf("/config/%s", url.PathEscape(configID))
	return c.invoke(ctx, http.MethodDelete, path, nil, nil, nil, nil)
}

// ConfigsModel returns the model all configuration objects are validated
// against.
func (c *Client) ConfigsModel(ctx context.Context) (Model, error) {
	var model Model
	if err := c.invoke(ctx, http.MethodGet, "/configs/model", nil, nil, nil, &model); err != nil {
		return Model{}, err
	}
	return model, nil
}

// UpdateConfigsModel merges kinds into the configuration model and returns
// the updated model.
func (c *Client) UpdateConfigsModel(ctx context.Context, update []Kind) (Model, error) {
	var model Model
	if err := c.invoke(ctx, http.MethodPatch, "/configs/model", nil, update, nil, &model); err != nil {
		return Model{}, err
	}
	return model, nil
}

// ListConfigsValidation returns the ids of configs with validation settings.
func (c *Client) ListConfigsValidation(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.invoke(ctx, http.MethodGet, "/configs/validation", nil, nil, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ConfigValidation returns the validation settings of one config.
func (c *Client) ConfigValidation(ctx context.Context, configID string) (*ConfigValidation, error) {
	var cv ConfigValidation
	path := fmt.Sprintf("/config/%s/validation", url.PathEscape(configID))
	if err := c.invoke(ctx, http.MethodGet, path, nil, nil, nil, &cv); err != nil {
		return nil, err
	}
	return &cv, nil
}

// PutConfigValidation stores the validation settings of one config.
func (c *Client) PutConfigValidation(ctx context.Context, cv ConfigValidation) (*ConfigValidation, error) {
	var stored ConfigValidation
	path := fmt.Sprintf("/config/%s/validation", url.PathEscape(cv.ID))
	if err := c.invoke(ctx, http.MethodPut, path, nil, cv, nil, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
