// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Identity is the persona ("load") the backend is serving.
type Identity struct {
	ID          string `json:"id"`
	InstanceID  string `json:"instance_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Email       string `json:"email"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// DefaultSystemPrompt is the playground prompt for a persona name.
func DefaultSystemPrompt(name string) string {
	if name == "" {
		name = "user"
	}
	return "You are " + name + `'s "Second Me", which is a personalized AI created by ` + name +
		". You can help " + name + " answer questions based on your understanding of " + name +
		"'s background information and past records."
}
