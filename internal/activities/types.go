package activities

import (
	"encoding/json"

	"discoveryflow/internal/discovery"
)

type CallStageInput struct {
	RunID   string            `json:"run_id"`
	Stage   discovery.Stage   `json:"stage"`
	Payload discovery.Payload `json:"payload"`
}

type GenerateHTMLInput struct {
	RunID       string            `json:"run_id"`
	Accumulated discovery.Results `json:"accumulated"`
}

type GeneratePDFInput struct {
	RunID string          `json:"run_id"`
	HTML  json.RawMessage `json:"html"`
}

type GeneratePDFOutput struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Filename  string `json:"filename,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
	Size      int    `json:"size,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
	Pages     int    `json:"pages,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type RecordStageInput struct {
	RunID  string                `json:"run_id"`
	Step   int                   `json:"step"`
	Result discovery.StageResult `json:"result"`
}

type UpdateRunStatusInput struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
}

type SaveReportInput struct {
	RunID       string            `json:"run_id"`
	Status      string            `json:"status"`
	Accumulated discovery.Results `json:"accumulated"`
	HTML        json.RawMessage   `json:"html"`
	PDF         GeneratePDFOutput `json:"pdf"`
}
