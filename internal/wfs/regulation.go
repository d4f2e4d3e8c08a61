package wfs

import "fmt"

// regulationURLTemplate is the Géoportail de l'Urbanisme document
// download pattern: /api/document/{id}/download-file/{fileName}.
const regulationURLTemplate = "https://www.geoportail-urbanisme.gouv.fr/api/document/%s/download-file/%s"

// RegulationURL derives the zoning regulation document URL from zoning
// attributes. The document id comes from "gpu_doc_id" (falling back to
// "id") and the filename from "nomfic"; both embedded verbatim. Returns
// "" when either is missing — there is no document to link.
func RegulationURL(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}

	docID := stringProp(props, "gpu_doc_id")
	if docID == "" {
		docID = stringProp(props, "id")
	}
	filename := stringProp(props, "nomfic")

	if docID == "" || filename == "" {
		return ""
	}
	return fmt.Sprintf(regulationURLTemplate, docID, filename)
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}
