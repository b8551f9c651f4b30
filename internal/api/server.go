package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"discoveryflow/internal/config"
	"discoveryflow/internal/discovery"
	"discoveryflow/internal/models"
	"discoveryflow/internal/storage"
	"discoveryflow/internal/util"
	"discoveryflow/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// workflowClient is the subset of the Temporal client the server uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type runStore interface {
	CreateRun(ctx context.Context, run models.DiscoveryRun) error
	UpdateRunStatus(ctx context.Context, runID, status, failReason string) error
	GetRun(ctx context.Context, runID string) (models.DiscoveryRun, error)
	ListStageResults(ctx context.Context, runID string) ([]models.StageResult, error)
}

type Server struct {
	cfg      config.Config
	runs     runStore
	temporal workflowClient
	closers  []func()
}

var errWorkflowStart = errors.New("start discovery workflow")

type startRunRequest struct {
	FileURLs   string `json:"file_urls"`
	FileTypes  string `json:"file_types"`
	Query      string `json:"query"`
	OutputDesc string `json:"output_desc"`
}

// NewServer connects to Postgres and Temporal. It fails when the endpoint
// URL is not configured.
func NewServer(cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dial temporal: %w", err)
	}
	s := newServer(cfg, storage.NewRunRepo(db), tc)
	s.closers = append(s.closers, tc.Close, db.Close)
	return s, nil
}

func newServer(cfg config.Config, runs runStore, wc workflowClient) *Server {
	return &Server{cfg: cfg, runs: runs, temporal: wc}
}

func (s *Server) Close() {
	for _, c := range s.closers {
		c()
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexPage.Execute(w, nil)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	req, fromForm, err := decodeStartRun(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	in := discovery.InputFromText(req.FileURLs, req.FileTypes, req.Query, req.OutputDesc)

	runID := uuid.NewString()
	if err := s.runs.CreateRun(r.Context(), models.DiscoveryRun{
		RunID:      runID,
		FileURLs:   in.FileURLs,
		FileTypes:  in.FileTypes,
		Query:      in.Query,
		OutputDesc: in.OutputDesc,
		Status:     models.RunStatusPending,
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       workflowID(runID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.DiscoveryWorkflow, workflows.DiscoveryInput{
		RunID:        runID,
		Input:        in,
		StageTimeout: s.cfg.StageTimeout(),
	})
	if err != nil {
		// The run row must not stay pending once the workflow cannot run.
		if uerr := s.runs.UpdateRunStatus(r.Context(), runID, models.RunStatusFailed, err.Error()); uerr != nil {
			log.Printf("mark run failed run_id=%s err=%v", runID, uerr)
		}
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("%w: %w", errWorkflowStart, err))
		return
	}
	if fromForm {
		http.Redirect(w, r, "/runs/"+runID+"/view", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "workflow_id": we.GetID(), "workflow_run_id": we.GetRunID()})
}

func decodeStartRun(r *http.Request) (startRunRequest, bool, error) {
	var req startRunRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, false, fmt.Errorf("invalid json: %w", err)
		}
		return req, false, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, true, fmt.Errorf("invalid form: %w", err)
	}
	req.FileURLs = r.PostForm.Get("file_urls")
	req.FileTypes = r.PostForm.Get("file_types")
	req.Query = r.PostForm.Get("query")
	req.OutputDesc = r.PostForm.Get("output_desc")
	return req, true, nil
}

func (s *Server) handleRunScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	runID := parts[0]
	if _, err := uuid.Parse(runID); err != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	switch {
	case len(parts) == 1:
		s.handleGetRun(w, r, runID)
	case len(parts) == 2 && parts[1] == "progress":
		prog, err := s.queryProgress(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
	case len(parts) == 2 && parts[1] == "view":
		s.handleRunView(w, r, runID)
	case len(parts) == 2 && parts[1] == "pdf":
		s.handleDownload(w, r, runID)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	stages, err := s.runs.ListStageResults(r.Context(), runID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "stages": stages})
}

func (s *Server) handleRunView(w http.ResponseWriter, r *http.Request, runID string) {
	prog, err := s.queryProgress(r.Context(), runID)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = runPage.Execute(w, newRunView(prog))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	path := run.PDFPath
	if path == "" {
		// The report write is best-effort; the workflow still knows the artifact.
		if prog, qerr := s.queryProgress(r.Context(), runID); qerr == nil && prog.PDFAvailable {
			path = prog.PDFPath
		}
	}
	if path == "" {
		writeErr(w, http.StatusConflict, util.ErrArtifactNotReady)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("open pdf artifact: %w", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("stat pdf artifact: %w", err))
		return
	}
	w.Header().Set("Content-Type", discovery.ArtifactMIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": discovery.ArtifactFilename}))
	http.ServeContent(w, r, discovery.ArtifactFilename, info.ModTime(), f)
}

func (s *Server) queryProgress(ctx context.Context, runID string) (workflows.DiscoveryProgress, error) {
	var prog workflows.DiscoveryProgress
	resp, err := s.temporal.QueryWorkflow(ctx, workflowID(runID), "", workflows.QueryGetDiscoveryProgress)
	if err != nil {
		return prog, err
	}
	if err := resp.Get(&prog); err != nil {
		return prog, err
	}
	return prog, nil
}

func workflowID(runID string) string {
	return "discovery-" + runID
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStoreErr(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeErr(w, http.StatusInternalServerError, err)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "DF-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case errors.Is(err, errWorkflowStart):
			return apiError{
				Code:    "DF-WF-5031",
				Message: "Workflow service is unavailable. Check the Temporal server and retry.",
			}
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "DF-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "DF-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "DF-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "DF-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "DF-API-4004"
		msg = "Requested run was not found."
	case status == http.StatusConflict:
		code = "DF-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "DF-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case errors.Is(err, util.ErrArtifactNotReady):
			code = "DF-PDF-4091"
			msg = "Failed to generate PDF, or it is not ready yet."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
