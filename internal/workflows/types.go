package workflows

import (
	"encoding/json"
	"time"

	"discoveryflow/internal/discovery"
)

type DiscoveryInput struct {
	RunID        string          `json:"run_id"`
	Input        discovery.Input `json:"input"`
	StageTimeout time.Duration   `json:"stage_timeout"`
}

type StageProgress struct {
	Step     int             `json:"step"`
	Name     string          `json:"name"`
	Endpoint string          `json:"endpoint"`
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
}

type DiscoveryProgress struct {
	RunID        string          `json:"run_id"`
	Status       string          `json:"status"`
	CurrentStep  int             `json:"current_step"`
	Stages       []StageProgress `json:"stages"`
	PDFAvailable bool            `json:"pdf_available"`
	PDFPath      string          `json:"pdf_path,omitempty"`
	PDFError     string          `json:"pdf_error,omitempty"`
}
