package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"discoveryflow/internal/config"
	"discoveryflow/internal/discovery"
	"discoveryflow/internal/models"
	"discoveryflow/internal/util"
)

// RunStore persists run bookkeeping. *storage.RunRepo implements it.
type RunStore interface {
	SaveStageResult(ctx context.Context, s models.StageResult) error
	UpdateRunStatus(ctx context.Context, runID, status, failReason string) error
	SaveReport(ctx context.Context, run models.DiscoveryRun) error
}

type Activities struct {
	cfg    config.Config
	client *discovery.Client
	store  RunStore
}

func New(cfg config.Config, store RunStore) (*Activities, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Activities{
		cfg:    cfg,
		client: discovery.NewClient(cfg.EndpointURL, cfg.HTTPTimeout()),
		store:  store,
	}, nil
}

// CallStageActivity never fails on backend errors; those come back as the
// sentinel result so the workflow keeps going without retries.
func (a *Activities) CallStageActivity(ctx context.Context, in CallStageInput) (discovery.StageResult, error) {
	res, err := discovery.CallAnalysisStage(ctx, a.client, in.Stage, in.Payload)
	if err != nil {
		return discovery.StageResult{}, err
	}
	if res.Failed {
		log.Printf("discovery stage failed run_id=%s endpoint=%s reason=%q", in.RunID, in.Stage.Endpoint, res.Reason)
	}
	return res, nil
}

func (a *Activities) GenerateHTMLActivity(ctx context.Context, in GenerateHTMLInput) (discovery.StageResult, error) {
	if err := util.WriteJSONAtomic(filepath.Join(a.runDir(in.RunID), "results.json"), in.Accumulated); err != nil {
		log.Printf("write accumulated results run_id=%s err=%v", in.RunID, err)
	}
	res, err := discovery.GenerateHTML(ctx, a.client, in.Accumulated)
	if err != nil {
		return discovery.StageResult{}, err
	}
	if res.Failed {
		log.Printf("discovery stage failed run_id=%s endpoint=%s reason=%q", in.RunID, discovery.HTMLStage.Endpoint, res.Reason)
	}
	return res, nil
}

// GeneratePDFActivity writes the PDF under the run directory. A backend
// failure yields Available=false rather than an error.
func (a *Activities) GeneratePDFActivity(ctx context.Context, in GeneratePDFInput) (GeneratePDFOutput, error) {
	data, err := discovery.GeneratePDF(ctx, a.client, in.HTML)
	if err != nil {
		if ctx.Err() != nil {
			return GeneratePDFOutput{}, err
		}
		log.Printf("discovery pdf failed run_id=%s err=%v", in.RunID, err)
		return GeneratePDFOutput{Reason: err.Error()}, nil
	}
	artifact := discovery.NewArtifact(data)
	path := filepath.Join(a.runDir(in.RunID), artifact.Filename)
	if err := util.WriteFileAtomic(path, artifact.Data); err != nil {
		return GeneratePDFOutput{}, fmt.Errorf("store pdf artifact: %w", err)
	}
	return GeneratePDFOutput{
		Available: true,
		Path:      path,
		Filename:  artifact.Filename,
		MIMEType:  artifact.MIMEType,
		Size:      len(artifact.Data),
		SHA256:    artifact.SHA256,
		Pages:     artifact.Pages,
	}, nil
}

func (a *Activities) RecordStageActivity(ctx context.Context, in RecordStageInput) error {
	return a.store.SaveStageResult(ctx, models.StageResult{
		RunID:     in.RunID,
		Step:      in.Step,
		StageName: in.Result.Stage.Name,
		Endpoint:  in.Result.Stage.Endpoint,
		Result:    in.Result.Value,
		Failed:    in.Result.Failed,
		Reason:    in.Result.Reason,
	})
}

func (a *Activities) UpdateRunStatusActivity(ctx context.Context, in UpdateRunStatusInput) error {
	return a.store.UpdateRunStatus(ctx, in.RunID, in.Status, in.FailReason)
}

func (a *Activities) SaveReportActivity(ctx context.Context, in SaveReportInput) error {
	acc, err := json.Marshal(in.Accumulated)
	if err != nil {
		return fmt.Errorf("encode accumulated results: %w", err)
	}
	return a.store.SaveReport(ctx, models.DiscoveryRun{
		RunID:       in.RunID,
		Status:      in.Status,
		Accumulated: acc,
		HTMLResult:  in.HTML,
		PDFPath:     in.PDF.Path,
		PDFSHA256:   in.PDF.SHA256,
		PDFPages:    in.PDF.Pages,
		FailReason:  in.PDF.Reason,
	})
}

func (a *Activities) runDir(runID string) string {
	return util.SafeJoin(filepath.Join(a.cfg.DataOutRoot, "runs"), runID)
}
