package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"discoveryflow/internal/models"

	"github.com/jackc/pgx/v5"
)

var ErrRunNotFound = errors.New("discovery run not found")

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) CreateRun(ctx context.Context, run models.DiscoveryRun) error {
	urlJSON, err := encodeList(run.FileURLs)
	if err != nil {
		return fmt.Errorf("encode file urls: %w", err)
	}
	typeJSON, err := encodeList(run.FileTypes)
	if err != nil {
		return fmt.Errorf("encode file types: %w", err)
	}
	status := run.Status
	if status == "" {
		status = models.RunStatusPending
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO discovery_runs (run_id, file_urls, file_types, query, output_desc, status)
VALUES ($1, $2::jsonb, $3::jsonb, $4, $5, $6)`, run.RunID, urlJSON, typeJSON, run.Query, run.OutputDesc, status)
	if err != nil {
		return fmt.Errorf("create discovery run: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateRunStatus(ctx context.Context, runID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE discovery_runs SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE run_id=$1`, runID, status, failReason)
	if err != nil {
		return fmt.Errorf("update discovery run: %w", err)
	}
	return nil
}

func (r *RunRepo) SaveStageResult(ctx context.Context, s models.StageResult) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO discovery_stage_results (run_id, step, stage_name, endpoint, result, failed, reason)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, NULLIF($7,''))
ON CONFLICT (run_id, step)
DO UPDATE SET
  result = EXCLUDED.result,
  failed = EXCLUDED.failed,
  reason = EXCLUDED.reason`,
		s.RunID, s.Step, s.StageName, s.Endpoint, string(s.Result), s.Failed, s.Reason,
	)
	if err != nil {
		return fmt.Errorf("save stage result: %w", err)
	}
	return nil
}

// SaveReport stores the final accumulated results, the HTML result and, when
// present, the PDF artifact location.
func (r *RunRepo) SaveReport(ctx context.Context, run models.DiscoveryRun) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE discovery_runs SET
  status = $2,
  accumulated = NULLIF($3,'')::jsonb,
  html_result = NULLIF($4,'')::jsonb,
  pdf_path = NULLIF($5,''),
  pdf_sha256 = NULLIF($6,''),
  pdf_pages = $7,
  fail_reason = NULLIF($8,''),
  updated_at = NOW()
WHERE run_id = $1`,
		run.RunID, run.Status, string(run.Accumulated), string(run.HTMLResult), run.PDFPath, run.PDFSHA256, run.PDFPages, run.FailReason,
	)
	if err != nil {
		return fmt.Errorf("save discovery report: %w", err)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (models.DiscoveryRun, error) {
	var (
		run                     models.DiscoveryRun
		urls, types             string
		accumulated, htmlResult string
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT run_id::text, file_urls::text, file_types::text, query, output_desc, status,
       COALESCE(accumulated::text,''), COALESCE(html_result::text,''),
       COALESCE(pdf_path,''), COALESCE(pdf_sha256,''), COALESCE(pdf_pages,0), COALESCE(fail_reason,''),
       created_at, updated_at
FROM discovery_runs
WHERE run_id=$1`, runID).Scan(
		&run.RunID, &urls, &types, &run.Query, &run.OutputDesc, &run.Status,
		&accumulated, &htmlResult,
		&run.PDFPath, &run.PDFSHA256, &run.PDFPages, &run.FailReason,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DiscoveryRun{}, ErrRunNotFound
	}
	if err != nil {
		return models.DiscoveryRun{}, fmt.Errorf("get discovery run: %w", err)
	}
	if run.FileURLs, err = decodeList(urls); err != nil {
		return models.DiscoveryRun{}, fmt.Errorf("decode file urls: %w", err)
	}
	if run.FileTypes, err = decodeList(types); err != nil {
		return models.DiscoveryRun{}, fmt.Errorf("decode file types: %w", err)
	}
	if accumulated != "" {
		run.Accumulated = json.RawMessage(accumulated)
	}
	if htmlResult != "" {
		run.HTMLResult = json.RawMessage(htmlResult)
	}
	return run, nil
}

func (r *RunRepo) ListStageResults(ctx context.Context, runID string) ([]models.StageResult, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT run_id::text, step, stage_name, endpoint, result::text, failed, COALESCE(reason,''), created_at
FROM discovery_stage_results
WHERE run_id=$1
ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	out := make([]models.StageResult, 0)
	for rows.Next() {
		var (
			s      models.StageResult
			result string
		)
		if err := rows.Scan(&s.RunID, &s.Step, &s.StageName, &s.Endpoint, &result, &s.Failed, &s.Reason, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		s.Result = json.RawMessage(result)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage results: %w", err)
	}
	return out, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
