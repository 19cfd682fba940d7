// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
)

// MemoryFile is one uploaded memory document.
type MemoryFile struct {
	ID              Loose   `json:"id"`
	Name            string  `json:"name"`
	Title           string  `json:"title"`
	CreateTime      string  `json:"create_time"`
	DocumentSize    int64   `json:"document_size"`
	EmbeddingStatus string  `json:"embedding_status"`
	ExtractStatus   string  `json:"extract_status"`
	Insight         *string `json:"insight"`
	MimeType        string  `json:"mime_type"`
	Summary         *string `json:"summary"`
	URL             string  `json:"url"`
	UserDescription string  `json:"user_description"`
}

// Memories lists uploaded memories.
func (c *Client) Memories(ctx context.Context) ([]MemoryFile, error) {
	return call[[]MemoryFile](ctx, c, "memories_list", http.MethodGet, "/api/documents/list", nil)
}

// DeleteMemory removes the memory file called name.
func (c *Client) DeleteMemory(ctx context.Context, name string) error {
	_, err := call[any](ctx, c, "memories_delete", http.MethodDelete,
		"/api/memories/file/"+url.PathEscape(name), nil)
	return err
}

// MemoryCount returns the number of uploaded memories.
func (c *Client) MemoryCount(ctx context.Context) (int, error) {
	list, err := c.Memories(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}
