// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package training

// ModelStatus is the lifecycle position of the persona's model.
type ModelStatus string

const (
	StatusSeedIdentity ModelStatus = "seed_identity"
	StatusMemoryUpload ModelStatus = "memory_upload"
	StatusTraining     ModelStatus = "training"
	StatusTrained      ModelStatus = "trained"
	StatusRunning      ModelStatus = "running"
)

// Label is the display text of a status.
func (s ModelStatus) Label() string {
	switch s {
	case StatusSeedIdentity:
		return "Seed Identity"
	case StatusMemoryUpload:
		return "Memory Upload"
	case StatusTraining:
		return "Training"
	case StatusTrained:
		return "Trained"
	case StatusRunning:
		return "Running"
	default:
		return string(s)
	}
}

// DeriveStatus computes the status after observing overall progress.
// Running is never changed by progress; 100 means trained and anything
// above zero means training.
func DeriveStatus(current ModelStatus, overall float64) ModelStatus {
	switch {
	case current == StatusRunning:
		return current
	case overall >= 100:
		return StatusTrained
	case overall > 0:
		return StatusTraining
	default:
		return current
	}
}
