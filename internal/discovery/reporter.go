package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Reporter displays pipeline progress as it happens.
type Reporter interface {
	StageStarted(stage Stage)
	StageCompleted(res StageResult)
	PDFReady(a *Artifact)
	PDFFailed(err error)
}

type nopReporter struct{}

func (nopReporter) StageStarted(Stage)         {}
func (nopReporter) StageCompleted(StageResult) {}
func (nopReporter) PDFReady(*Artifact)         {}
func (nopReporter) PDFFailed(error)            {}

// WriterReporter prints stage headers and indented JSON results to W.
type WriterReporter struct {
	W io.Writer
}

func (r WriterReporter) StageStarted(stage Stage) {
	fmt.Fprintf(r.W, "== %s\n", stage.Name)
}

func (r WriterReporter) StageCompleted(res StageResult) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, res.Value, "", "  "); err != nil {
		buf.Reset()
		buf.Write(res.Value)
	}
	fmt.Fprintf(r.W, "%s\n", buf.String())
}

func (r WriterReporter) PDFReady(a *Artifact) {
	fmt.Fprintf(r.W, "PDF generated successfully: %s (%d bytes, %d pages)\n", a.Filename, len(a.Data), a.Pages)
}

func (r WriterReporter) PDFFailed(err error) {
	fmt.Fprintf(r.W, "Failed to generate PDF: %v\n", err)
}
