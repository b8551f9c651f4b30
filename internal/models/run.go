package models

import (
	"encoding/json"
	"time"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPDFFailed = "pdf_failed"
	RunStatusFailed    = "failed"
)

type DiscoveryRun struct {
	RunID       string          `json:"run_id"`
	FileURLs    []string        `json:"file_urls"`
	FileTypes   []string        `json:"file_types"`
	Query       string          `json:"query"`
	OutputDesc  string          `json:"output_desc"`
	Status      string          `json:"status"`
	Accumulated json.RawMessage `json:"accumulated_results,omitempty"`
	HTMLResult  json.RawMessage `json:"html_result,omitempty"`
	PDFPath     string          `json:"pdf_path,omitempty"`
	PDFSHA256   string          `json:"pdf_sha256,omitempty"`
	PDFPages    int             `json:"pdf_pages,omitempty"`
	FailReason  string          `json:"fail_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type StageResult struct {
	RunID     string          `json:"run_id"`
	Step      int             `json:"step"`
	StageName string          `json:"stage_name"`
	Endpoint  string          `json:"endpoint"`
	Result    json.RawMessage `json:"result"`
	Failed    bool            `json:"failed"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
