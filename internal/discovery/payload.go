package discovery

import (
	"encoding/json"
	"strings"
)

// Results maps a stage result key to its raw JSON value. Values are never
// mutated once stored, so copies may share them.
type Results map[string]json.RawMessage

const sentinelMessage = "Failed to fetch data"

// Sentinel is the placeholder contribution of a stage whose call did not succeed.
func Sentinel() Results {
	msg, _ := json.Marshal(sentinelMessage)
	return Results{"error": msg}
}

func sentinelJSON() json.RawMessage {
	b, _ := json.Marshal(Sentinel())
	return b
}

// Clone returns a shallow copy. A nil receiver yields an empty, non-nil map.
func (r Results) Clone() Results {
	out := make(Results, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a new map holding r overwritten key by key with next.
func (r Results) Merge(next Results) Results {
	out := r.Clone()
	for k, v := range next {
		out[k] = v
	}
	return out
}

// Input holds the user-provided fields shared by every analysis stage.
type Input struct {
	FileURLs   []string `json:"file_urls"`
	FileTypes  []string `json:"file_types"`
	Query      string   `json:"query"`
	OutputDesc string   `json:"output_desc"`
}

// InputFromText builds an Input from the raw comma-separated form fields.
func InputFromText(fileURLs, fileTypes, query, outputDesc string) Input {
	return Input{
		FileURLs:   ParseList(fileURLs),
		FileTypes:  ParseList(fileTypes),
		Query:      query,
		OutputDesc: outputDesc,
	}
}

// ParseList splits a comma-separated list, trimming entries and dropping
// empty ones. It never returns nil.
func ParseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Payload is the request body of an analysis stage.
type Payload struct {
	FileURLs               []string `json:"file_urls"`
	FileTypes              []string `json:"file_types"`
	Query                  string   `json:"query"`
	OutputDesc             string   `json:"output_desc"`
	PreviousAgenticResults Results  `json:"previous_agentic_results"`
}

// Payload pairs the input with a snapshot of the accumulated results.
func (in Input) Payload(acc Results) Payload {
	urls := in.FileURLs
	if urls == nil {
		urls = []string{}
	}
	types := in.FileTypes
	if types == nil {
		types = []string{}
	}
	return Payload{
		FileURLs:               urls,
		FileTypes:              types,
		Query:                  in.Query,
		OutputDesc:             in.OutputDesc,
		PreviousAgenticResults: acc.Clone(),
	}
}

type htmlPayload struct {
	JSONContent Results `json:"json_content"`
}

type pdfPayload struct {
	HTMLContent json.RawMessage `json:"html_content"`
}
