package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"montage/internal/api"
	"montage/internal/projectstore"
	"montage/internal/testsupport"
)

func newTestAPI(t *testing.T) (*httptest.Server, *projectstore.Store) {
	t.Helper()

	d, store, _ := newTestDaemon(t)
	server := httptest.NewServer(d.api.handler())
	t.Cleanup(server.Close)
	return server, store
}

func doRequest(t *testing.T, method, url string, body []byte) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	payload, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, payload
}

func TestStatusEndpoint(t *testing.T) {
	server, store := newTestAPI(t)
	testsupport.SeedProject(t, store, "proj")

	resp, payload := doRequest(t, http.MethodGet, server.URL+"/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, payload)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Projects != 1 {
		t.Errorf("Projects = %d, want 1", status.Projects)
	}
}

func TestProjectEndpoints(t *testing.T) {
	server, store := newTestAPI(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	resp, payload := doRequest(t, http.MethodGet, server.URL+"/api/projects", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, body %s", resp.StatusCode, payload)
	}
	var list api.ProjectListResponse
	if err := json.Unmarshal(payload, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Projects) != 1 || list.Projects[0].ID != "proj" {
		t.Fatalf("list = %+v", list)
	}

	resp, payload = doRequest(t, http.MethodGet, server.URL+"/api/projects/proj", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, body %s", resp.StatusCode, payload)
	}
	var detail api.ProjectDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Shots) != 1 || detail.Shots[0].ID != "shot-1" {
		t.Fatalf("detail = %+v", detail)
	}

	resp, _ = doRequest(t, http.MethodGet, server.URL+"/api/projects/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing project status = %d, want 404", resp.StatusCode)
	}
}

func TestShotPatchEndpoint(t *testing.T) {
	server, store := newTestAPI(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	resp, payload := doRequest(t, http.MethodPatch, server.URL+"/api/projects/proj/shots/shot-1",
		[]byte(`{"prompt":"dawn over water","durationSeconds":4.5}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", resp.StatusCode, payload)
	}
	var view api.ShotView
	if err := json.Unmarshal(payload, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Prompt != "dawn over water" || view.DurationSeconds != 4.5 {
		t.Fatalf("view = %+v", view)
	}

	// Server-managed fields are rejected, not silently dropped.
	resp, _ = doRequest(t, http.MethodPatch, server.URL+"/api/projects/proj/shots/shot-1",
		[]byte(`{"status":"ready"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("forbidden-field patch status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodPatch, server.URL+"/api/projects/proj/shots/ghost",
		[]byte(`{"prompt":"x"}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing shot patch status = %d, want 404", resp.StatusCode)
	}
}

func TestRenderEndpoints(t *testing.T) {
	server, store := newTestAPI(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	resp, payload := doRequest(t, http.MethodPost, server.URL+"/api/projects/proj/render",
		[]byte(`{"quality":"preview","shotIds":["shot-1"]}`))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("render start status = %d, body %s", resp.StatusCode, payload)
	}
	var started api.RenderStartResponse
	if err := json.Unmarshal(payload, &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.JobID == "" {
		t.Fatal("empty job id")
	}

	jobURL := fmt.Sprintf("%s/api/projects/proj/render/%s", server.URL, started.JobID)
	deadline := time.Now().Add(5 * time.Second)
	var job api.RenderJobView
	for {
		resp, payload = doRequest(t, http.MethodGet, jobURL, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("render get status = %d, body %s", resp.StatusCode, payload)
		}
		var wrapped api.RenderJobResponse
		if err := json.Unmarshal(payload, &wrapped); err != nil {
			t.Fatalf("decode: %v", err)
		}
		job = wrapped.Job
		if job.Status == string(projectstore.RenderStatusDone) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, last state %+v", job)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Progress != 100 || job.OutputFile == "" {
		t.Fatalf("done job = %+v", job)
	}

	resp, _ = doRequest(t, http.MethodDelete, jobURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("render delete status = %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, jobURL, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted job get status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/projects/proj/render",
		[]byte(`{"quality":"cinematic"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad quality status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateAndCancelEndpoints(t *testing.T) {
	server, store := newTestAPI(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	resp, payload := doRequest(t, http.MethodPost, server.URL+"/api/projects/proj/shots/shot-1/generate",
		[]byte(`{"kind":"image","prompt":"sunrise"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", resp.StatusCode, payload)
	}
	var generated map[string]string
	if err := json.Unmarshal(payload, &generated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if generated["asset"] != "asset.png" {
		t.Fatalf("generate response = %v", generated)
	}

	resp, _ = doRequest(t, http.MethodPost, server.URL+"/api/projects/proj/shots/shot-1/generate",
		[]byte(`{"kind":"hologram"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad kind status = %d, want 400", resp.StatusCode)
	}

	resp, payload = doRequest(t, http.MethodPost, server.URL+"/api/projects/proj/shots/shot-1/cancel", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	var cancelled api.CancelResponse
	if err := json.Unmarshal(payload, &cancelled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cancelled.Cancelled != 0 {
		t.Fatalf("Cancelled = %d, want 0 with no live task", cancelled.Cancelled)
	}
}

func TestRecoverEndpoint(t *testing.T) {
	server, store := newTestAPI(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	resp, payload := doRequest(t, http.MethodPost, server.URL+"/api/recover", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recover status = %d, body %s", resp.StatusCode, payload)
	}
	var report api.RecoveryResponse
	if err := json.Unmarshal(payload, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Projects != 1 || report.ReferencesFound != 0 {
		t.Fatalf("report = %+v", report)
	}
}
