package api

import (
	"bytes"
	"encoding/json"
	"html/template"

	"discoveryflow/internal/models"
	"discoveryflow/internal/workflows"
)

var indexPage = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>AI Pipeline Request Handler</title></head>
<body>
<h1>AI Pipeline Request Handler</h1>
<form method="post" action="/runs">
  <p><label>File URLs (comma-separated)<br><textarea name="file_urls" rows="3" cols="80"></textarea></label></p>
  <p><label>File Types (comma-separated)<br><textarea name="file_types" rows="2" cols="80"></textarea></label></p>
  <p><label>Optional Query<br><textarea name="query" rows="3" cols="80"></textarea></label></p>
  <p><label>Optional Output Description<br><textarea name="output_desc" rows="3" cols="80"></textarea></label></p>
  <p><button type="submit">Start Processing</button></p>
</form>
</body>
</html>
`))

var runPage = template.Must(template.New("run").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
{{if .Running}}<meta http-equiv="refresh" content="2">{{end}}
<title>Discovery run {{.RunID}}</title>
</head>
<body>
<h1>Discovery run {{.RunID}}</h1>
<p>Status: {{.Status}}</p>
{{range .Stages}}
<h2>{{.Name}}</h2>
<p>{{.Status}}</p>
{{if .Result}}<pre>{{.Result}}</pre>{{end}}
{{end}}
{{if .PDFAvailable}}<p>PDF Generated Successfully! <a href="/runs/{{.RunID}}/pdf" download="discovery_result.pdf">Download PDF</a></p>{{end}}
{{if .PDFError}}<p>Failed to generate PDF</p>{{end}}
</body>
</html>
`))

type stageView struct {
	Name   string
	Status string
	Result string
}

type runView struct {
	RunID        string
	Status       string
	Running      bool
	Stages       []stageView
	PDFAvailable bool
	PDFError     string
}

func newRunView(p workflows.DiscoveryProgress) runView {
	v := runView{
		RunID:        p.RunID,
		Status:       p.Status,
		Running:      p.Status == models.RunStatusRunning,
		PDFAvailable: p.PDFAvailable,
		PDFError:     p.PDFError,
	}
	for _, s := range p.Stages {
		v.Stages = append(v.Stages, stageView{Name: s.Name, Status: s.Status, Result: indentJSON(s.Result)})
	}
	return v
}

func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
