// Package processor provides the document formats a pipeline can translate.
//
// Each extractor turns a document into an ordered list of segments and
// builds translated copies of the document from one translation per segment.
package processor

import (
	"fmt"

	"github.com/ZaguanLabs/transctl"
)

// ForType returns the extractor for a resource type.
func ForType(t transctl.ResourceType) (transctl.Extractor, error) {
	switch t {
	case transctl.ResourceHTML:
		return NewHTMLExtractor(), nil
	case transctl.ResourceJSON:
		return NewJSONExtractor(), nil
	default:
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("no extractor for resource type %q", t)}
	}
}

// All returns one extractor per supported resource type.
func All() []transctl.Extractor {
	out := make([]transctl.Extractor, 0, len(transctl.ResourceTypes))
	for _, t := range transctl.ResourceTypes {
		e, err := ForType(t)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

func checkCount(doc transctl.Document, translations []string, ct transctl.ResourceType) error {
	if n := len(doc.Segments()); n != len(translations) {
		return &transctl.ProcessorError{
			Message:     "cannot reinsert translations",
			Cause:       &transctl.CountMismatchError{Expected: n, Got: len(translations)},
			ContentType: ct,
		}
	}
	return nil
}
