package util

import (
	"encoding/json"
	"fmt"
)

// WriteJSONAtomic stores v as indented JSON at path.
func WriteJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return WriteFileAtomic(path, append(b, '\n'))
}
