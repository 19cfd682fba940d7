// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"github.com/jeranaias/secondme-tui/internal/model"
)

// =============================================================================
// BLOB TYPES
// =============================================================================

// PlaygroundSettings are the chat knobs sent with every request.
type PlaygroundSettings struct {
	EnableL0Retrieval bool    `json:"enableL0Retrieval"`
	EnableL1Retrieval bool    `json:"enableL1Retrieval"`
	EnableHelperModel bool    `json:"enableHelperModel"`
	SelectedModel     string  `json:"selectedModel"`
	APIKey            string  `json:"apiKey"`
	SystemPrompt      string  `json:"systemPrompt"`
	Temperature       float64 `json:"temperature"`
}

// DefaultSettings returns the settings used before any are saved.
func DefaultSettings(personaName string, temperature float64) PlaygroundSettings {
	return PlaygroundSettings{
		EnableL0Retrieval: true,
		EnableL1Retrieval: true,
		SelectedModel:     "ollama",
		APIKey:            "http://localhost:11434",
		SystemPrompt:      model.DefaultSystemPrompt(personaName),
		Temperature:       temperature,
	}
}

// TrainingConfig remembers which base model the last run used.
type TrainingConfig struct {
	BaseModel string `json:"baseModel"`
}

// LogEntry is one captured training log line.
type LogEntry struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// =============================================================================
// BLOBS
// =============================================================================

// Blobs reads and writes the single-value keys.
type Blobs struct {
	a *Adapter
}

// NewBlobs returns blob accessors over a.
func NewBlobs(a *Adapter) *Blobs {
	return &Blobs{a: a}
}

// Settings returns the stored settings, or def when none are stored.
func (b *Blobs) Settings(def PlaygroundSettings) PlaygroundSettings {
	s := def
	if !b.a.readJSON(KeySettings, &s) {
		return def
	}
	return s
}

// SaveSettings stores s.
func (b *Blobs) SaveSettings(s PlaygroundSettings) error {
	return b.a.update(func() error { return b.a.writeJSON(KeySettings, s) })
}

// TrainingConfig returns the stored training config. ok is false when none
// is stored.
func (b *Blobs) TrainingConfig() (cfg TrainingConfig, ok bool) {
	ok = b.a.readJSON(KeyTrainingConfig, &cfg)
	return cfg, ok && cfg.BaseModel != ""
}

// SaveTrainingConfig stores cfg.
func (b *Blobs) SaveTrainingConfig(cfg TrainingConfig) error {
	return b.a.update(func() error { return b.a.writeJSON(KeyTrainingConfig, cfg) })
}

// TrainingLogs returns the persisted log snapshot.
func (b *Blobs) TrainingLogs() []LogEntry {
	var logs []LogEntry
	if !b.a.readJSON(KeyTrainingLogs, &logs) {
		return []LogEntry{}
	}
	return logs
}

// SaveTrainingLogs replaces the persisted log snapshot.
func (b *Blobs) SaveTrainingLogs(logs []LogEntry) error {
	return b.a.update(func() error { return b.a.writeJSON(KeyTrainingLogs, logs) })
}

// ClearTrainingLogs removes the persisted log snapshot.
func (b *Blobs) ClearTrainingLogs() error {
	return b.a.update(func() error { return b.a.remove(KeyTrainingLogs) })
}

// Identity returns the cached persona.
func (b *Blobs) Identity() (model.Identity, bool) {
	var id model.Identity
	ok := b.a.readJSON(KeyUpload, &id)
	return id, ok
}

// SaveIdentity caches the persona.
func (b *Blobs) SaveIdentity(id model.Identity) error {
	return b.a.update(func() error { return b.a.writeJSON(KeyUpload, id) })
}

// Flag reads a boolean flag key. Missing or corrupt means false.
func (b *Blobs) Flag(key string) bool {
	var v bool
	b.a.readJSON(key, &v)
	return v
}

// SetFlag writes a boolean flag key.
func (b *Blobs) SetFlag(key string, v bool) error {
	return b.a.update(func() error { return b.a.writeJSON(key, v) })
}
