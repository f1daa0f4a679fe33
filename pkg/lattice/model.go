package lattice

import (
	"context"
	"net/http"
)

// GetModel returns the core's data model.
func (c *Client) GetModel(ctx context.Context) (Model, error) {
	var model Model
	if err := c.invoke(ctx, http.MethodGet, "/model", nil, nil, nil, &model); err != nil {
		return Model{}, err
	}
	return model, nil
}

// UpdateModel merges kinds into the data model and returns the updated model.
func (c *Client) UpdateModel(ctx context.Context, update []Kind) (Model, error) {
	var model Model
	if err := c.invoke(ctx, http.MethodPatch, "/model", nil, update, nil, &model); err != nil {
		return Model{}, err
	}
	return model, nil
}
