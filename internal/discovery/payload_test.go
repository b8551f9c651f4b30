package discovery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseList(t *testing.T) {
	cases := map[string][]string{
		"":                           {},
		"   ":                        {},
		"http://a.csv, http://b.csv": {"http://a.csv", "http://b.csv"},
		"csv,,  ,pdf ":               {"csv", "pdf"},
		"single":                     {"single"},
	}
	for raw, want := range cases {
		got := ParseList(raw)
		require.NotNil(t, got, "raw=%q", raw)
		require.Equal(t, want, got, "raw=%q", raw)
	}
}

func TestMergeOverwritesWithoutMutating(t *testing.T) {
	base := Results{"a": json.RawMessage(`1`), "b": json.RawMessage(`2`)}
	merged := base.Merge(Results{"b": json.RawMessage(`"x"`), "c": json.RawMessage(`null`)})

	require.Len(t, base, 2)
	require.Equal(t, json.RawMessage(`2`), base["b"])
	require.Equal(t, json.RawMessage(`"x"`), merged["b"])
	require.Equal(t, json.RawMessage(`null`), merged["c"])
	require.Len(t, merged, 3)
}

func TestPayloadSnapshotIsIndependent(t *testing.T) {
	acc := Results{"a": json.RawMessage(`1`)}
	p := InputFromText("u", "t", "", "").Payload(acc)
	acc["b"] = json.RawMessage(`2`)
	require.Len(t, p.PreviousAgenticResults, 1)
}

func TestNilResultsCloneIsEmptyObject(t *testing.T) {
	var r Results
	b, err := json.Marshal(Input{}.Payload(r))
	require.NoError(t, err)
	require.JSONEq(t, `{"file_urls":[],"file_types":[],"query":"","output_desc":"","previous_agentic_results":{}}`, string(b))
}

func TestStagesAreFixed(t *testing.T) {
	stages := AnalysisStages()
	require.Len(t, stages, 7)
	require.Equal(t, "/api/discovery-multi-agent/ftr-analyst", stages[0].Endpoint)
	require.Equal(t, "/api/discovery-multi-agent/ut-generator", stages[6].Endpoint)

	stages[0].Endpoint = "mutated"
	require.Equal(t, "/api/discovery-multi-agent/ftr-analyst", AnalysisStages()[0].Endpoint)

	all := AllStages()
	require.Len(t, all, 9)
	require.Equal(t, HTMLStage, all[7])
	require.Equal(t, PDFStage, all[8])
}

func TestContributionFallsBackToSentinel(t *testing.T) {
	r := StageResult{Value: json.RawMessage(`"just a string"`)}
	require.Equal(t, Sentinel(), r.Contribution())
}
