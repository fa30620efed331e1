// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// JSONExporter writes the transcript as indented JSON. Metadata options do
// not apply; the output always carries the complete transcript.
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter. opts is accepted for symmetry
// with the other exporters.
func NewJSONExporter(opts *Options) *JSONExporter {
	return &JSONExporter{}
}

// Export converts a transcript to JSON.
func (e *JSONExporter) Export(t Transcript) ([]byte, error) {
	if t.Messages == nil {
		t.Messages = []model.Message{}
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns ".json".
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
