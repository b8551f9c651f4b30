package discovery

import (
	"context"
	"log"

	"discoveryflow/internal/config"
)

// Outcome is everything a run produced. PDF is nil when the PDF stage failed,
// in which case PDFErr says why.
type Outcome struct {
	Stages      []StageResult
	Accumulated Results
	HTML        StageResult
	PDF         *Artifact
	PDFErr      error
}

// Orchestrator runs the discovery stages in order, threading the accumulated
// results from each stage into the next.
type Orchestrator struct {
	client   *Client
	reporter Reporter
}

// New fails when cfg has no endpoint URL. A nil reporter discards progress.
func New(cfg config.Config, reporter Reporter) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Orchestrator{
		client:   NewClient(cfg.EndpointURL, cfg.HTTPTimeout()),
		reporter: reporter,
	}, nil
}

// Run executes all nine stages sequentially. Stage failures never stop the
// run; the only error returned is ctx ending.
func (o *Orchestrator) Run(ctx context.Context, in Input) (Outcome, error) {
	out := Outcome{Accumulated: Results{}}
	acc := Results{}
	for _, stage := range AnalysisStages() {
		o.reporter.StageStarted(stage)
		res, err := CallAnalysisStage(ctx, o.client, stage, in.Payload(acc))
		if err != nil {
			return out, err
		}
		if res.Failed {
			log.Printf("discovery stage failed endpoint=%s reason=%q", stage.Endpoint, res.Reason)
		}
		o.reporter.StageCompleted(res)
		out.Stages = append(out.Stages, res)
		acc = acc.Merge(res.Contribution())
		out.Accumulated = acc
	}

	o.reporter.StageStarted(HTMLStage)
	html, err := GenerateHTML(ctx, o.client, acc)
	if err != nil {
		return out, err
	}
	if html.Failed {
		log.Printf("discovery stage failed endpoint=%s reason=%q", HTMLStage.Endpoint, html.Reason)
	}
	o.reporter.StageCompleted(html)
	out.HTML = html

	o.reporter.StageStarted(PDFStage)
	data, err := GeneratePDF(ctx, o.client, html.Value)
	if err != nil {
		if ctx.Err() != nil {
			return out, err
		}
		log.Printf("discovery pdf failed endpoint=%s err=%v", PDFStage.Endpoint, err)
		out.PDFErr = err
		o.reporter.PDFFailed(err)
		return out, nil
	}
	out.PDF = NewArtifact(data)
	o.reporter.PDFReady(out.PDF)
	return out, nil
}
