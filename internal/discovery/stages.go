package discovery

const endpointPrefix = "/api/discovery-multi-agent/"

// Stage is one backend agent call in the discovery pipeline.
type Stage struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

var analysisStages = [...]Stage{
	{Name: "Step 1: Generating Functional & Technical Requirements Analysis", Endpoint: endpointPrefix + "ftr-analyst"},
	{Name: "Step 2: Generating AS-IS Process Document", Endpoint: endpointPrefix + "aip-documenter"},
	{Name: "Step 3: Updating TO-BE Data Flow", Endpoint: endpointPrefix + "tbd-updater"},
	{Name: "Step 4: Generating Data Gap Analysis & Solutions", Endpoint: endpointPrefix + "das-generator"},
	{Name: "Step 5: Generating TO-BE Process Document", Endpoint: endpointPrefix + "tbpd-generator"},
	{Name: "Step 6: Generating Access Setup & Support Requirements Plan", Endpoint: endpointPrefix + "assr-planifier"},
	{Name: "Step 7: Generating Updated Timeline", Endpoint: endpointPrefix + "ut-generator"},
}

var (
	HTMLStage = Stage{Name: "Step 8: Generating HTML Report", Endpoint: endpointPrefix + "html-generator"}
	PDFStage  = Stage{Name: "Step 9: Generating PDF Report", Endpoint: endpointPrefix + "pdf-generator"}
)

// AnalysisStages returns the seven analysis stages in execution order.
// The returned slice is a copy.
func AnalysisStages() []Stage {
	out := make([]Stage, len(analysisStages))
	copy(out, analysisStages[:])
	return out
}

// AllStages returns the analysis stages followed by the HTML and PDF stages.
func AllStages() []Stage {
	return append(AnalysisStages(), HTMLStage, PDFStage)
}
