package wfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegulationURL(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]any
		want  string
	}{
		{
			"doc id and filename",
			map[string]any{"gpu_doc_id": "42", "nomfic": "reg.pdf"},
			"https://www.geoportail-urbanisme.gouv.fr/api/document/42/download-file/reg.pdf",
		},
		{
			"falls back to id",
			map[string]any{"id": "75056_PLU", "nomfic": "reglement.pdf"},
			"https://www.geoportail-urbanisme.gouv.fr/api/document/75056_PLU/download-file/reglement.pdf",
		},
		{
			"gpu_doc_id outranks id",
			map[string]any{"gpu_doc_id": "A", "id": "B", "nomfic": "r.pdf"},
			"https://www.geoportail-urbanisme.gouv.fr/api/document/A/download-file/r.pdf",
		},
		{"missing doc id", map[string]any{"nomfic": "reg.pdf"}, ""},
		{"missing filename", map[string]any{"gpu_doc_id": "42"}, ""},
		{"empty properties", map[string]any{}, ""},
		{"nil properties", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RegulationURL(tt.props))
		})
	}
}

func TestRegulationURL_Deterministic(t *testing.T) {
	props := map[string]any{"gpu_doc_id": "42", "nomfic": "reg.pdf"}
	assert.Equal(t, RegulationURL(props), RegulationURL(props))
}
