package discovery

import (
	"context"
	"encoding/json"
	"fmt"
)

// StageResult is what one stage produced, as shown to the user.
type StageResult struct {
	Stage  Stage           `json:"stage"`
	Value  json.RawMessage `json:"value"`
	Failed bool            `json:"failed"`
	Reason string          `json:"reason,omitempty"`
}

// Contribution decodes Value as the keys merged into the accumulated results.
func (r StageResult) Contribution() Results {
	var out Results
	if err := json.Unmarshal(r.Value, &out); err != nil || out == nil {
		return Sentinel()
	}
	return out
}

func failedResult(stage Stage, err error) StageResult {
	return StageResult{Stage: stage, Value: sentinelJSON(), Failed: true, Reason: err.Error()}
}

// CallAnalysisStage posts payload to stage and returns its result. Any
// failure other than ctx ending degrades to the sentinel value; the
// returned error is non-nil only when ctx is done.
func CallAnalysisStage(ctx context.Context, c *Client, stage Stage, payload Payload) (StageResult, error) {
	raw, err := c.PostJSON(ctx, stage.Endpoint, payload)
	if err != nil {
		if ctx.Err() != nil {
			return StageResult{}, ctx.Err()
		}
		return failedResult(stage, err), nil
	}
	var obj Results
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return failedResult(stage, fmt.Errorf("%w: %s did not return a json object", ErrStageFailed, stage.Endpoint)), nil
	}
	return StageResult{Stage: stage, Value: raw}, nil
}

// GenerateHTML asks the HTML stage to render the accumulated results. The
// result may be any JSON value.
func GenerateHTML(ctx context.Context, c *Client, acc Results) (StageResult, error) {
	raw, err := c.PostJSON(ctx, HTMLStage.Endpoint, htmlPayload{JSONContent: acc.Clone()})
	if err != nil {
		if ctx.Err() != nil {
			return StageResult{}, ctx.Err()
		}
		return failedResult(HTMLStage, err), nil
	}
	return StageResult{Stage: HTMLStage, Value: raw}, nil
}

// GeneratePDF asks the PDF stage to render html. Failures wrap ErrPDFGeneration
// unless ctx is done, in which case ctx.Err() is returned.
func GeneratePDF(ctx context.Context, c *Client, html json.RawMessage) ([]byte, error) {
	b, err := c.PostBinary(ctx, PDFStage.Endpoint, pdfPayload{HTMLContent: html})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrPDFGeneration, err)
	}
	return b, nil
}
