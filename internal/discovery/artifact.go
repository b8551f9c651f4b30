package discovery

import (
	"bytes"

	"discoveryflow/internal/util"

	"github.com/ledongthuc/pdf"
)

const (
	ArtifactFilename = "discovery_result.pdf"
	ArtifactMIMEType = "application/pdf"
)

// Artifact is the downloadable PDF produced by a run.
type Artifact struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
	SHA256   string `json:"sha256"`
	Pages    int    `json:"pages"`
}

// NewArtifact wraps data unchanged. Pages is 0 when data cannot be parsed
// as a PDF.
func NewArtifact(data []byte) *Artifact {
	return &Artifact{
		Filename: ArtifactFilename,
		MIMEType: ArtifactMIMEType,
		Data:     data,
		SHA256:   util.SHA256Hex(data),
		Pages:    CountPages(data),
	}
}

// CountPages reads the page tree of a PDF document.
func CountPages(data []byte) (pages int) {
	if len(data) == 0 {
		return 0
	}
	// The reader panics on some malformed trailers.
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return r.NumPage()
}
