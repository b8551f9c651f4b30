package workflows

import (
	"discoveryflow/internal/activities"
	"discoveryflow/internal/discovery"
	"discoveryflow/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetDiscoveryProgress = "GetDiscoveryProgress"

const (
	stagePending = "pending"
	stageRunning = "running"
	stageDone    = "done"
	stageFailed  = "failed"
)

// DiscoveryWorkflow calls the nine discovery stages one after another. Each
// analysis stage receives the results merged from every stage before it.
// Stage failures are forwarded as the sentinel value; only activity errors
// (cancellation, timeouts, artifact storage) fail the workflow.
func DiscoveryWorkflow(ctx workflow.Context, input DiscoveryInput) (string, error) {
	progress := newDiscoveryProgress(input.RunID)
	if err := workflow.SetQueryHandler(ctx, QueryGetDiscoveryProgress, func() (DiscoveryProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: input.StageTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	_ = workflow.ExecuteActivity(ctx, "UpdateRunStatusActivity", activities.UpdateRunStatusInput{RunID: input.RunID, Status: models.RunStatusRunning}).Get(ctx, nil)

	acc := discovery.Results{}
	for i, stage := range discovery.AnalysisStages() {
		progress.start(i)
		var res discovery.StageResult
		err := workflow.ExecuteActivity(ctx, "CallStageActivity", activities.CallStageInput{
			RunID:   input.RunID,
			Stage:   stage,
			Payload: input.Input.Payload(acc),
		}).Get(ctx, &res)
		if err != nil {
			return "", failRun(ctx, input.RunID, &progress, err)
		}
		if res.Failed {
			logger.Warn("discovery stage failed", "RunID", input.RunID, "Endpoint", stage.Endpoint, "Reason", res.Reason)
		}
		progress.finish(i, res)
		recordStage(ctx, input.RunID, i+1, res)
		acc = acc.Merge(res.Contribution())
	}

	htmlIdx := len(progress.Stages) - 2
	progress.start(htmlIdx)
	var html discovery.StageResult
	if err := workflow.ExecuteActivity(ctx, "GenerateHTMLActivity", activities.GenerateHTMLInput{RunID: input.RunID, Accumulated: acc}).Get(ctx, &html); err != nil {
		return "", failRun(ctx, input.RunID, &progress, err)
	}
	progress.finish(htmlIdx, html)
	recordStage(ctx, input.RunID, htmlIdx+1, html)

	pdfIdx := len(progress.Stages) - 1
	progress.start(pdfIdx)
	var pdf activities.GeneratePDFOutput
	if err := workflow.ExecuteActivity(ctx, "GeneratePDFActivity", activities.GeneratePDFInput{RunID: input.RunID, HTML: html.Value}).Get(ctx, &pdf); err != nil {
		return "", failRun(ctx, input.RunID, &progress, err)
	}
	status := models.RunStatusCompleted
	if pdf.Available {
		progress.Stages[pdfIdx].Status = stageDone
		progress.PDFAvailable = true
		progress.PDFPath = pdf.Path
	} else {
		status = models.RunStatusPDFFailed
		progress.Stages[pdfIdx].Status = stageFailed
		progress.PDFError = pdf.Reason
		logger.Warn("discovery pdf failed", "RunID", input.RunID, "Reason", pdf.Reason)
	}
	progress.Status = status

	if err := workflow.ExecuteActivity(ctx, "SaveReportActivity", activities.SaveReportInput{
		RunID:       input.RunID,
		Status:      status,
		Accumulated: acc,
		HTML:        html.Value,
		PDF:         pdf,
	}).Get(ctx, nil); err != nil {
		// The progress query still carries the artifact path for downloads.
		logger.Error("save discovery report failed", "RunID", input.RunID, "Error", err)
	}
	return status, nil
}

func newDiscoveryProgress(runID string) DiscoveryProgress {
	stages := discovery.AllStages()
	p := DiscoveryProgress{RunID: runID, Status: models.RunStatusRunning, Stages: make([]StageProgress, 0, len(stages))}
	for i, s := range stages {
		p.Stages = append(p.Stages, StageProgress{Step: i + 1, Name: s.Name, Endpoint: s.Endpoint, Status: stagePending})
	}
	return p
}

func (p *DiscoveryProgress) start(idx int) {
	p.CurrentStep = idx + 1
	p.Stages[idx].Status = stageRunning
}

func (p *DiscoveryProgress) finish(idx int, res discovery.StageResult) {
	p.Stages[idx].Result = res.Value
	if res.Failed {
		p.Stages[idx].Status = stageFailed
		return
	}
	p.Stages[idx].Status = stageDone
}

func recordStage(ctx workflow.Context, runID string, step int, res discovery.StageResult) {
	_ = workflow.ExecuteActivity(ctx, "RecordStageActivity", activities.RecordStageInput{RunID: runID, Step: step, Result: res}).Get(ctx, nil)
}

func failRun(ctx workflow.Context, runID string, progress *DiscoveryProgress, cause error) error {
	progress.Status = models.RunStatusFailed
	if progress.CurrentStep > 0 {
		progress.Stages[progress.CurrentStep-1].Status = stageFailed
	}
	dctx, _ := workflow.NewDisconnectedContext(ctx)
	_ = workflow.ExecuteActivity(dctx, "UpdateRunStatusActivity", activities.UpdateRunStatusInput{
		RunID:      runID,
		Status:     models.RunStatusFailed,
		FailReason: cause.Error(),
	}).Get(dctx, nil)
	return cause
}
