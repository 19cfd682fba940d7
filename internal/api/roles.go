// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
)

// Role is a persona variant with its own system prompt.
type Role struct {
	ID                int    `json:"id"`
	UUID              string `json:"uuid"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	SystemPrompt      string `json:"system_prompt"`
	Icon              string `json:"icon"`
	IsActive          bool   `json:"is_active"`
	CreateTime        string `json:"create_time"`
	UpdateTime        string `json:"update_time"`
	EnableL0Retrieval bool   `json:"enable_l0_retrieval"`
	EnableL1Retrieval bool   `json:"enable_l1_retrieval"`
}

// RoleRequest creates or updates a role.
type RoleRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	SystemPrompt      string `json:"system_prompt"`
	Icon              string `json:"icon"`
	EnableL0Retrieval bool   `json:"enable_l0_retrieval"`
	EnableL1Retrieval bool   `json:"enable_l1_retrieval"`
}

// Roles lists all roles.
func (c *Client) Roles(ctx context.Context) ([]Role, error) {
	return call[[]Role](ctx, c, "roles_list", http.MethodGet, "/api/kernel2/roles", nil)
}

// Role fetches one role by uuid.
func (c *Client) Role(ctx context.Context, uuid string) (Role, error) {
	return call[Role](ctx, c, "roles_get", http.MethodGet, "/api/kernel2/roles/"+url.PathEscape(uuid), nil)
}

// CreateRole creates a role.
func (c *Client) CreateRole(ctx context.Context, req RoleRequest) (Role, error) {
	return call[Role](ctx, c, "roles_create", http.MethodPost, "/api/kernel2/roles", req)
}

// UpdateRole replaces a role's fields.
func (c *Client) UpdateRole(ctx context.Context, uuid string, req RoleRequest) (Role, error) {
	return call[Role](ctx, c, "roles_update", http.MethodPut, "/api/kernel2/roles/"+url.PathEscape(uuid), req)
}

// DeleteRole deletes a role.
func (c *Client) DeleteRole(ctx context.Context, uuid string) error {
	_, err := call[any](ctx, c, "roles_delete", http.MethodDelete, "/api/kernel2/roles/"+url.PathEscape(uuid), nil)
	return err
}

// ShareRole publishes a role and returns the server's answer.
func (c *Client) ShareRole(ctx context.Context, uuid string) (Role, error) {
	return call[Role](ctx, c, "roles_share", http.MethodPost, "/api/kernel2/roles/share",
		map[string]string{"role_id": uuid})
}
