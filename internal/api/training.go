// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
)

// =============================================================================
// TRAINING PROCESS
// =============================================================================

// TrainStep is one step inside a stage.
type TrainStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Status    string `json:"status"`
}

// TrainStage is one server-side stage.
type TrainStage struct {
	Name        string               `json:"name"`
	Progress    float64              `json:"progress"`
	Status      string               `json:"status"`
	Steps       map[string]TrainStep `json:"steps"`
	CurrentStep *string              `json:"current_step"`
}

// TrainProgress is the answer of the progress endpoint.
type TrainProgress struct {
	Stages          map[string]TrainStage `json:"stages"`
	OverallProgress float64               `json:"overall_progress"`
	CurrentStage    string                `json:"current_stage"`
	Status          string                `json:"status"`
}

// StartTrainResult is the answer of start and retrain.
type StartTrainResult struct {
	ProgressID string `json:"progress_id"`
}

type modelNameReq struct {
	ModelName string `json:"model_name"`
}

// StartTraining starts a new training run for baseModel.
func (c *Client) StartTraining(ctx context.Context, baseModel string) (StartTrainResult, error) {
	return call[StartTrainResult](ctx, c, "train_start", http.MethodPost,
		"/api/trainprocess/start", modelNameReq{ModelName: baseModel})
}

// Retrain restarts training on an existing run.
func (c *Client) Retrain(ctx context.Context, baseModel string) (StartTrainResult, error) {
	return call[StartTrainResult](ctx, c, "train_retrain", http.MethodPost,
		"/api/trainprocess/retrain", modelNameReq{ModelName: baseModel})
}

// StopTraining stops the current run.
func (c *Client) StopTraining(ctx context.Context) error {
	_, err := call[any](ctx, c, "train_stop", http.MethodPost, "/api/trainprocess/stop", nil)
	return err
}

// TrainProgress fetches progress for baseModel.
func (c *Client) TrainProgress(ctx context.Context, baseModel string) (TrainProgress, error) {
	return call[TrainProgress](ctx, c, "train_progress", http.MethodGet,
		"/api/trainprocess/progress/"+url.PathEscape(baseModel), nil)
}

// TrainedModelName returns the model name of the last training run, or ""
// when nothing has been trained.
func (c *Client) TrainedModelName(ctx context.Context) (string, error) {
	res, err := call[modelNameReq](ctx, c, "train_model_name", http.MethodGet,
		"/api/trainprocess/model_name", nil)
	return res.ModelName, err
}

// TrainLogsPath is the SSE endpoint streaming training logs.
const TrainLogsPath = "/api/trainprocess/logs"

// =============================================================================
// MODEL SERVICE
// =============================================================================

// ProcessInfo describes the running inference process.
type ProcessInfo struct {
	Cmdline       []string `json:"cmdline"`
	CPUPercent    Loose    `json:"cpu_percent"`
	CreateTime    Loose    `json:"create_time"`
	MemoryPercent Loose    `json:"memory_percent"`
	PID           Loose    `json:"pid"`
}

// ServiceStatus is the answer of the service status endpoint.
type ServiceStatus struct {
	IsRunning   bool         `json:"is_running"`
	ProcessInfo *ProcessInfo `json:"process_info,omitempty"`
}

// StartService starts the inference service for the trained model.
func (c *Client) StartService(ctx context.Context, modelName string) error {
	_, err := call[any](ctx, c, "service_start", http.MethodPost,
		"/api/kernel2/llama/start", modelNameReq{ModelName: modelName})
	return err
}

// StopService stops the inference service.
func (c *Client) StopService(ctx context.Context) error {
	_, err := call[any](ctx, c, "service_stop", http.MethodPost, "/api/kernel2/llama/stop", nil)
	return err
}

// ServiceStatus reads whether the inference service runs.
func (c *Client) ServiceStatus(ctx context.Context) (ServiceStatus, error) {
	return call[ServiceStatus](ctx, c, "service_status", http.MethodGet, "/api/kernel2/llama/status", nil)
}
