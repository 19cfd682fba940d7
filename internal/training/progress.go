// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package training

import (
	"github.com/jeranaias/secondme-tui/internal/api"
)

// Server stage keys in pipeline order.
const (
	StageDownload  = "downloading_the_base_model"
	StageMemory    = "activating_the_memory_matrix"
	StageNarrative = "synthesize_your_life_narrative"
	StagePrepare   = "prepare_training_data_for_deep_comprehension"
	StageTrain     = "training_to_create_second_me"
)

// StageKeys lists the five stages; index i is stage i+1.
var StageKeys = [5]string{StageDownload, StageMemory, StageNarrative, StagePrepare, StageTrain}

// StageNames are the display names used before the server reports any.
var StageNames = [5]string{
	"Downloading the Base Model",
	"Activating the Memory Matrix",
	"Synthesize Your Life Narrative",
	"Prepare Training Data for Deep Comprehension",
	"Training to create Second Me",
}

// Stage-set and step statuses reported by the server.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSuspended  = "suspended"
)

// Step is one step of a stage.
type Step struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Status    string `json:"status"`
}

// StageInfo is the detail of one stage.
type StageInfo struct {
	Name        string          `json:"name"`
	Progress    float64         `json:"progress"`
	Status      string          `json:"status"`
	CurrentStep string          `json:"current_step,omitempty"`
	Steps       map[string]Step `json:"steps"`
}

// Progress is the client view of a training run.
type Progress struct {
	Overall          float64      `json:"overall"`
	Stages           [5]float64   `json:"stages"`
	CurrentStage     string       `json:"currentStage,omitempty"`
	CurrentStageStep string       `json:"currentStageStep,omitempty"`
	Status           string       `json:"status"`
	StageDetails     [5]StageInfo `json:"stageDetails"`
}

func pendingStage(i int) StageInfo {
	return StageInfo{Name: StageNames[i], Status: StatusPending, Steps: map[string]Step{}}
}

// DefaultProgress is the progress before anything was observed.
func DefaultProgress() Progress {
	p := Progress{Status: StatusPending}
	for i := range p.StageDetails {
		p.StageDetails[i] = pendingStage(i)
	}
	return p
}

// ResetProgress is the progress shown right after a run is requested:
// stage 1 in progress on its model download step.
func ResetProgress() Progress {
	p := DefaultProgress()
	p.CurrentStage = StageDownload
	p.CurrentStageStep = "model_download"
	p.Status = StatusInProgress
	p.StageDetails[0] = StageInfo{
		Name:        StageNames[0],
		Status:      StatusInProgress,
		CurrentStep: "model_download",
		Steps: map[string]Step{
			"model_download": {Name: StageNames[0], Status: StatusInProgress},
		},
	}
	return p
}

// FromResponse maps the server's stage map onto the five fixed stages.
// Missing stages stay pending.
func FromResponse(r api.TrainProgress) Progress {
	p := Progress{
		Overall:      r.OverallProgress,
		CurrentStage: r.CurrentStage,
		Status:       r.Status,
	}
	for i, key := range StageKeys {
		s, ok := r.Stages[key]
		if !ok {
			p.StageDetails[i] = pendingStage(i)
			continue
		}
		info := StageInfo{
			Name:     s.Name,
			Progress: s.Progress,
			Status:   s.Status,
			Steps:    make(map[string]Step, len(s.Steps)),
		}
		if info.Name == "" {
			info.Name = StageNames[i]
		}
		if s.CurrentStep != nil {
			info.CurrentStep = *s.CurrentStep
		}
		for k, st := range s.Steps {
			info.Steps[k] = Step{Name: st.Name, Completed: st.Completed, Status: st.Status}
		}
		p.Stages[i] = s.Progress
		p.StageDetails[i] = info
	}
	if r.CurrentStage != "" {
		if s, ok := r.Stages[r.CurrentStage]; ok && s.CurrentStep != nil {
			p.CurrentStageStep = *s.CurrentStep
		}
	}
	return p
}

// StageIndex returns the 0-based index of key, or -1.
func StageIndex(key string) int {
	for i, k := range StageKeys {
		if k == key {
			return i
		}
	}
	return -1
}

// Terminal reports whether the stage-set status ends polling.
func (p Progress) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}
