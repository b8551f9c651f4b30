package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"discoveryflow/internal/config"
	"discoveryflow/internal/discovery"
	"discoveryflow/internal/models"
	"discoveryflow/internal/storage"
	"discoveryflow/internal/workflows"

	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

type fakeStore struct {
	created  []models.DiscoveryRun
	runs     map[string]models.DiscoveryRun
	stages   []models.StageResult
	statuses map[string]string
}

func (f *fakeStore) CreateRun(_ context.Context, run models.DiscoveryRun) error {
	f.created = append(f.created, run)
	return nil
}

func (f *fakeStore) UpdateRunStatus(_ context.Context, runID, status, _ string) error {
	if f.statuses == nil {
		f.statuses = map[string]string{}
	}
	f.statuses[runID] = status
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, runID string) (models.DiscoveryRun, error) {
	run, ok := f.runs[runID]
	if !ok {
		return models.DiscoveryRun{}, storage.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeStore) ListStageResults(_ context.Context, _ string) ([]models.StageResult, error) {
	return f.stages, nil
}

type fakeRun struct {
	tclient.WorkflowRun
	id string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return "temporal-run" }

type fakeValue struct {
	converter.EncodedValue
	v any
}

func (f fakeValue) Get(valuePtr interface{}) error {
	b, err := json.Marshal(f.v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, valuePtr)
}

type fakeTemporal struct {
	options  tclient.StartWorkflowOptions
	args     []interface{}
	progress workflows.DiscoveryProgress
	queried  string
	startErr error
}

func (f *fakeTemporal) ExecuteWorkflow(_ context.Context, options tclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (tclient.WorkflowRun, error) {
	f.options = options
	f.args = args
	if f.startErr != nil {
		return nil, f.startErr
	}
	return fakeRun{id: options.ID}, nil
}

func (f *fakeTemporal) QueryWorkflow(_ context.Context, workflowID string, _ string, _ string, _ ...interface{}) (converter.EncodedValue, error) {
	f.queried = workflowID
	return fakeValue{v: f.progress}, nil
}

const testRunID = "6f1c2a1e-5d0b-4c59-9a57-2f7d3c1b8e10"

func newTestServer(store *fakeStore, tc *fakeTemporal) http.Handler {
	cfg := config.Config{EndpointURL: "http://agents", TemporalTaskQueue: "discovery", StageTimeoutSecs: 60}
	return newServer(cfg, store, tc).Routes()
}

func TestIndexRendersForm(t *testing.T) {
	h := newTestServer(&fakeStore{}, &fakeTemporal{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, field := range []string{"file_urls", "file_types", "query", "output_desc"} {
		require.Contains(t, body, `name="`+field+`"`)
	}
}

func TestStartRunFromJSON(t *testing.T) {
	store := &fakeStore{}
	tc := &fakeTemporal{}
	h := newTestServer(store, tc)

	body := `{"file_urls":"http://a.csv, http://b.csv","file_types":"csv, csv","query":"q","output_desc":""}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	runID := resp["run_id"]
	require.NotEmpty(t, runID)
	require.Equal(t, "discovery-"+runID, resp["workflow_id"])

	require.Len(t, store.created, 1)
	require.Equal(t, []string{"http://a.csv", "http://b.csv"}, store.created[0].FileURLs)
	require.Equal(t, models.RunStatusPending, store.created[0].Status)

	require.Equal(t, "discovery", tc.options.TaskQueue)
	require.Len(t, tc.args, 1)
	in, ok := tc.args[0].(workflows.DiscoveryInput)
	require.True(t, ok)
	require.Equal(t, runID, in.RunID)
	require.Equal(t, []string{"csv", "csv"}, in.Input.FileTypes)
	require.Equal(t, "q", in.Input.Query)
	require.Equal(t, time.Minute, in.StageTimeout)
}

func TestStartRunFromFormRedirects(t *testing.T) {
	store := &fakeStore{}
	h := newTestServer(store, &fakeTemporal{})

	form := url.Values{"file_urls": {""}, "file_types": {"csv"}}
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, store.created, 1)
	require.Equal(t, "/runs/"+store.created[0].RunID+"/view", rec.Header().Get("Location"))
	require.Equal(t, []string{}, store.created[0].FileURLs)
}

func TestStartRunRejectsMalformedJSON(t *testing.T) {
	h := newTestServer(&fakeStore{}, &fakeTemporal{})
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Malformed JSON request body.")
}

func TestDownloadPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), discovery.ArtifactFilename)
	pdfBytes := []byte("%PDF-1.4\x00\x01binary")
	require.NoError(t, os.WriteFile(path, pdfBytes, 0o644))
	store := &fakeStore{runs: map[string]models.DiscoveryRun{
		testRunID: {RunID: testRunID, Status: models.RunStatusCompleted, PDFPath: path},
	}}
	h := newTestServer(store, &fakeTemporal{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+testRunID+"/pdf", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t, "attachment; filename=discovery_result.pdf", rec.Header().Get("Content-Disposition"))
	require.Equal(t, pdfBytes, rec.Body.Bytes())
}

func TestDownloadPDFUnavailable(t *testing.T) {
	store := &fakeStore{runs: map[string]models.DiscoveryRun{
		testRunID: {RunID: testRunID, Status: models.RunStatusPDFFailed},
	}}
	h := newTestServer(store, &fakeTemporal{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+testRunID+"/pdf", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "DF-PDF-4091")
	require.NotEqual(t, "application/pdf", rec.Header().Get("Content-Type"))
}

func TestUnknownRunIsNotFound(t *testing.T) {
	h := newTestServer(&fakeStore{runs: map[string]models.DiscoveryRun{}}, &fakeTemporal{})
	for _, path := range []string{"/runs/not-a-uuid/pdf", "/runs/" + testRunID + "/pdf", "/runs/" + testRunID} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRunViewShowsStagesAndDownload(t *testing.T) {
	tc := &fakeTemporal{progress: workflows.DiscoveryProgress{
		RunID:  testRunID,
		Status: models.RunStatusCompleted,
		Stages: []workflows.StageProgress{
			{Step: 1, Name: discovery.AnalysisStages()[0].Name, Status: "done", Result: json.RawMessage(`{"a":1}`)},
		},
		PDFAvailable: true,
	}}
	h := newTestServer(&fakeStore{}, tc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+testRunID+"/view", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "discovery-"+testRunID, tc.queried)
	body := rec.Body.String()
	require.Contains(t, body, "Step 1: Generating Functional &amp; Technical Requirements Analysis")
	require.Contains(t, body, "/runs/"+testRunID+"/pdf")
	require.NotContains(t, body, "http-equiv=\"refresh\"")
}

func TestProgressReturnsQueryResult(t *testing.T) {
	tc := &fakeTemporal{progress: workflows.DiscoveryProgress{RunID: testRunID, Status: models.RunStatusRunning, CurrentStep: 3}}
	h := newTestServer(&fakeStore{}, tc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+testRunID+"/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var prog workflows.DiscoveryProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prog))
	require.Equal(t, 3, prog.CurrentStep)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(&fakeStore{}, &fakeTemporal{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestStartRunWorkflowUnavailable(t *testing.T) {
	store := &fakeStore{}
	h := newTestServer(store, &fakeTemporal{startErr: errors.New("dial tcp 127.0.0.1:7233: connection refused")})

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"file_urls":"http://a.csv"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "DF-WF-5031")
	require.Len(t, store.created, 1)
	require.Equal(t, models.RunStatusFailed, store.statuses[store.created[0].RunID])
}

func TestStartRunAlreadyStartedConflicts(t *testing.T) {
	store := &fakeStore{}
	h := newTestServer(store, &fakeTemporal{startErr: serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "")})

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "DF-API-4009")
}

func TestDownloadPDFFallsBackToWorkflowArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), discovery.ArtifactFilename)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	store := &fakeStore{runs: map[string]models.DiscoveryRun{
		testRunID: {RunID: testRunID, Status: models.RunStatusRunning},
	}}
	tc := &fakeTemporal{progress: workflows.DiscoveryProgress{
		RunID:        testRunID,
		Status:       models.RunStatusCompleted,
		PDFAvailable: true,
		PDFPath:      path,
	}}
	h := newTestServer(store, tc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+testRunID+"/pdf", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "discovery-"+testRunID, tc.queried)
	require.Equal(t, "%PDF-1.4", rec.Body.String())
}
