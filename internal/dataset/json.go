package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/example/dicomcache/internal/dicomtag"
)

// jsonElement is one attribute in the DICOM-JSON model: an 8-hex-digit
// tag key mapping to a VR and a value array.
type jsonElement struct {
	VR    string            `json:"vr"`
	Value []json.RawMessage `json:"Value"`
}

// personName is the DICOM-JSON encoding for PN values.
type personName struct {
	Alphabetic string `json:"Alphabetic"`
}

// FromDICOMJSON decodes one DICOM-JSON metadata object (keys are
// 8-hex-digit tags, values are {"vr": ..., "Value": [...]}) into a
// Dataset. Tags without a dictionary entry are skipped, as are bulk-data
// references, which have no inline value.
func FromDICOMJSON(data []byte) (*Dataset, error) {
	var raw map[string]jsonElement
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse DICOM JSON: %w", err)
	}

	ds := New()
	for key, el := range raw {
		keyword, err := dicomtag.KeywordForKey(key)
		if err != nil {
			// private or retired tag
			continue
		}
		values := make([]string, 0, len(el.Value))
		for _, v := range el.Value {
			s, err := decodeJSONValue(v)
			if err != nil {
				continue
			}
			values = append(values, s)
		}
		ds.SetElement(keyword, Element{VR: el.VR, Values: values})
	}
	return ds, nil
}

// FromDICOMJSONArray decodes a DICOMweb metadata response body, a JSON
// array with one DICOM-JSON object per instance. An empty body yields an
// empty slice, which signals the end of pagination to callers.
func FromDICOMJSONArray(data []byte) ([]*Dataset, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rawSets []json.RawMessage
	if err := json.Unmarshal(data, &rawSets); err != nil {
		return nil, fmt.Errorf("failed to parse metadata array: %w", err)
	}

	datasets := make([]*Dataset, 0, len(rawSets))
	for i, raw := range rawSets {
		ds, err := FromDICOMJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse metadata entry %d: %w", i, err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// decodeJSONValue coerces one DICOM-JSON value entry to its string form.
// Entries are strings, numbers, or person-name objects.
func decodeJSONValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var pn personName
	if err := json.Unmarshal(raw, &pn); err == nil && pn.Alphabetic != "" {
		return pn.Alphabetic, nil
	}
	return "", fmt.Errorf("unsupported value encoding: %s", string(raw))
}
