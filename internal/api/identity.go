// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/jeranaias/secondme-tui/internal/model"
)

type loadInfo struct {
	ID          Loose   `json:"id"`
	InstanceID  string  `json:"instance_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	AvatarData  *string `json:"avatar_data"`
	Email       string  `json:"email"`
}

// CurrentIdentity fetches the persona the backend is loaded with.
func (c *Client) CurrentIdentity(ctx context.Context) (model.Identity, error) {
	info, err := call[loadInfo](ctx, c, "identity_current", http.MethodGet, "/api/loads/current", nil)
	if err != nil {
		return model.Identity{}, err
	}
	return model.Identity{
		ID:          info.ID.String(),
		InstanceID:  info.InstanceID,
		Name:        info.Name,
		Description: info.Description,
		Status:      info.Status,
		Email:       info.Email,
		CreatedAt:   info.CreatedAt,
		UpdatedAt:   info.UpdatedAt,
	}, nil
}
