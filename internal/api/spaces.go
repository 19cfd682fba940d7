// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
)

// SpaceStatus is the discussion state of a space.
type SpaceStatus int

const (
	SpaceUnknown     SpaceStatus = 0
	SpaceInitialized SpaceStatus = 1
	SpaceDiscussing  SpaceStatus = 2
	SpaceInterrupted SpaceStatus = 3
	SpaceEnded       SpaceStatus = 4
)

// String returns the display label.
func (s SpaceStatus) String() string {
	switch s {
	case SpaceInitialized:
		return "Initialized"
	case SpaceDiscussing:
		return "In Discussion"
	case SpaceInterrupted:
		return "Discussion Interrupted"
	case SpaceEnded:
		return "Discussion Ended"
	default:
		return "Unknown"
	}
}

// Finished reports whether the discussion can no longer progress.
func (s SpaceStatus) Finished() bool {
	return s == SpaceInterrupted || s == SpaceEnded
}

// SpaceMessage is one turn in a space discussion.
type SpaceMessage struct {
	ID             Loose  `json:"id"`
	Content        string `json:"content"`
	CreateTime     string `json:"create_time"`
	MessageType    string `json:"message_type"`
	Role           string `json:"role"`
	Round          int    `json:"round"`
	SenderEndpoint string `json:"sender_endpoint"`
	SpaceID        string `json:"space_id"`
}

// Participant describes one space participant.
type Participant struct {
	URL             string `json:"url"`
	RoleDescription string `json:"role_description,omitempty"`
}

// Space is a multi-persona discussion.
type Space struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Objective        string         `json:"objective"`
	Host             string         `json:"host"`
	Participants     []string       `json:"participants"`
	ParticipantsInfo []Participant  `json:"participants_info,omitempty"`
	Conclusion       *string        `json:"conclusion"`
	CreateTime       string         `json:"create_time"`
	Status           SpaceStatus    `json:"status,omitempty"`
	Messages         []SpaceMessage `json:"messages,omitempty"`
}

// CreateSpaceRequest creates a space.
type CreateSpaceRequest struct {
	Title        string   `json:"title"`
	Objective    string   `json:"objective"`
	Host         string   `json:"host"`
	Participants []string `json:"participants"`
}

// SpaceShare is the answer of the share endpoint.
type SpaceShare struct {
	Space   Space  `json:"space"`
	ShareID string `json:"space_share_id"`
}

// Spaces lists all spaces.
func (c *Client) Spaces(ctx context.Context) ([]Space, error) {
	return call[[]Space](ctx, c, "spaces_list", http.MethodGet, "/api/space/all", nil)
}

// Space fetches one space with its messages.
func (c *Client) Space(ctx context.Context, id string) (Space, error) {
	return call[Space](ctx, c, "spaces_get", http.MethodGet, "/api/space/"+url.PathEscape(id), nil)
}

// CreateSpace creates a space.
func (c *Client) CreateSpace(ctx context.Context, req CreateSpaceRequest) (Space, error) {
	return call[Space](ctx, c, "spaces_create", http.MethodPost, "/api/space/create", req)
}

// StartSpace starts the discussion.
func (c *Client) StartSpace(ctx context.Context, id string) (Space, error) {
	return call[Space](ctx, c, "spaces_start", http.MethodPost, "/api/space/"+url.PathEscape(id)+"/start", nil)
}

// DeleteSpace deletes a space.
func (c *Client) DeleteSpace(ctx context.Context, id string) error {
	_, err := call[any](ctx, c, "spaces_delete", http.MethodDelete, "/api/space/"+url.PathEscape(id), nil)
	return err
}

// ShareSpace publishes a space.
func (c *Client) ShareSpace(ctx context.Context, id string) (SpaceShare, error) {
	return call[SpaceShare](ctx, c, "spaces_share", http.MethodPost, "/api/space/"+url.PathEscape(id)+"/share", nil)
}
