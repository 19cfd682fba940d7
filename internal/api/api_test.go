// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
	header http.Header
}

// newTestServer answers every request with payload and records the last
// request.
func newTestServer(t *testing.T, status int, payload string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.header = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		rec.body = nil
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL + "/"), rec
}

func TestNew_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
	assert.Equal(t, "http://x:1", New("http://x:1///").BaseURL())
}

func TestStartTraining(t *testing.T) {
	c, rec := newTestServer(t, 200, `{"code":0,"message":"ok","data":{"progress_id":"p-1"}}`)

	res, err := c.StartTraining(context.Background(), "Qwen2.5-0.5B-Instruct")
	require.NoError(t, err)
	assert.Equal(t, "p-1", res.ProgressID)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/trainprocess/start", rec.path)
	assert.Equal(t, "Qwen2.5-0.5B-Instruct", rec.body["model_name"])
	assert.NotEmpty(t, rec.header.Get("timestamp"))
	assert.Equal(t, "application/json", rec.header.Get("Content-Type"))
}

func TestBusinessErrorIsVerbatim(t *testing.T) {
	c, _ := newTestServer(t, 200, `{"code":1,"message":"Training already in progress","data":null}`)

	_, err := c.Retrain(context.Background(), "m")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusiness))

	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 1, be.Code)
	assert.Equal(t, "Training already in progress", UserMessage(err))
}

func TestStatusError(t *testing.T) {
	c, _ := newTestServer(t, 503, `unavailable`)

	err := c.StopTraining(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHTTPStatus))
	assert.Equal(t, "HTTP error! status: 503", err.Error())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "unavailable", se.Body)
}

func TestInvalidEnvelope(t *testing.T) {
	c, _ := newTestServer(t, 200, `<html>`)
	_, err := c.Memories(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestTrainProgress(t *testing.T) {
	payload := `{"code":0,"data":{
		"overall_progress": 45.5,
		"current_stage": "activating_the_memory_matrix",
		"status": "in_progress",
		"stages": {
			"downloading_the_base_model": {"name":"Downloading the Base Model","progress":100,"status":"completed","steps":{},"current_step":null},
			"activating_the_memory_matrix": {"name":"Activating the Memory Matrix","progress":50,"status":"in_progress",
				"steps":{"list_documents":{"name":"List Documents","completed":true,"status":"completed"}},
				"current_step":"generate_document_embeddings"}
		}}}`
	c, rec := newTestServer(t, 200, payload)

	p, err := c.TrainProgress(context.Background(), "my model")
	require.NoError(t, err)
	assert.Equal(t, "/api/trainprocess/progress/my model", rec.path)
	assert.InDelta(t, 45.5, p.OverallProgress, 0.001)
	assert.Equal(t, "in_progress", p.Status)

	stage := p.Stages["activating_the_memory_matrix"]
	require.NotNil(t, stage.CurrentStep)
	assert.Equal(t, "generate_document_embeddings", *stage.CurrentStep)
	assert.True(t, stage.Steps["list_documents"].Completed)
	assert.Nil(t, p.Stages["downloading_the_base_model"].CurrentStep)
}

func TestServiceStatus_LooseNumbers(t *testing.T) {
	c, _ := newTestServer(t, 200, `{"code":0,"data":{"is_running":true,
		"process_info":{"cmdline":["llama-server"],"cpu_percent":12.5,"create_time":"1700000000","memory_percent":3,"pid":4242}}}`)

	st, err := c.ServiceStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsRunning)
	require.NotNil(t, st.ProcessInfo)
	assert.Equal(t, "4242", st.ProcessInfo.PID.String())
	assert.Equal(t, "12.5", st.ProcessInfo.CPUPercent.String())
}

func TestTrainedModelName(t *testing.T) {
	c, _ := newTestServer(t, 200, `{"code":0,"data":{"model_name":"Qwen2.5-0.5B-Instruct"}}`)
	name, err := c.TrainedModelName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Qwen2.5-0.5B-Instruct", name)
}

func TestMemories(t *testing.T) {
	c, rec := newTestServer(t, 200, `{"code":0,"data":[
		{"id":1,"name":"a.txt","title":"A","document_size":10},
		{"id":"2","name":"b.md","title":"B","document_size":20}]}`)

	n, err := c.MemoryCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "/api/documents/list", rec.path)

	list, err := c.Memories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", list[0].ID.String())
}

func TestRolesAndSpaces(t *testing.T) {
	c, rec := newTestServer(t, 200, `{"code":0,"data":{"uuid":"r-1","name":"Coach","system_prompt":"be kind"}}`)

	role, err := c.CreateRole(context.Background(), RoleRequest{Name: "Coach", SystemPrompt: "be kind"})
	require.NoError(t, err)
	assert.Equal(t, "r-1", role.UUID)
	assert.Equal(t, "/api/kernel2/roles", rec.path)
	assert.Equal(t, "be kind", rec.body["system_prompt"])

	_, err = c.ShareRole(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/kernel2/roles/share", rec.path)
	assert.Equal(t, "r-1", rec.body["role_id"])

	require.NoError(t, c.DeleteSpace(context.Background(), "s-9"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/api/space/s-9", rec.path)
}

func TestSpaceStatus(t *testing.T) {
	assert.Equal(t, "In Discussion", SpaceDiscussing.String())
	assert.Equal(t, "Unknown", SpaceStatus(9).String())
	assert.True(t, SpaceEnded.Finished())
	assert.False(t, SpaceInitialized.Finished())
}

func TestCurrentIdentity(t *testing.T) {
	c, _ := newTestServer(t, 200, `{"code":0,"data":{"id":7,"name":"Ada","status":"online","avatar_data":null}}`)
	id, err := c.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", id.ID)
	assert.Equal(t, "Ada", id.Name)
}

func TestOpenStream(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: hi\n\n"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.OpenStream(context.Background(), http.MethodPost, "/ok", map[string]string{"message": "x"})
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "data: hi\n\n", string(body))
	assert.Equal(t, "text/event-stream", got.Get("Accept"))
	assert.Equal(t, "no-cache", got.Get("Cache-Control"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))

	_, err = c.OpenStream(context.Background(), http.MethodGet, "/fail", nil)
	assert.EqualError(t, err, "HTTP error! status: 500")
	assert.True(t, IsNotFound(&StatusError{StatusCode: 404}))
}
