package ahi

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/example/dicomcache/internal/dataset"
	"github.com/example/dicomcache/internal/dicomtag"
)

// imageSetMetadata is the decompressed HealthImaging image-set metadata
// document: DICOM attributes at patient and study level, with series and
// instances nested under the study.
type imageSetMetadata struct {
	ImageSetID string                     `json:"ImageSetID"`
	Patient    levelMetadata              `json:"Patient"`
	Study      studyMetadata              `json:"Study"`
}

type levelMetadata struct {
	DICOM map[string]json.RawMessage `json:"DICOM"`
}

type studyMetadata struct {
	DICOM  map[string]json.RawMessage `json:"DICOM"`
	Series map[string]seriesMetadata  `json:"Series"`
}

type seriesMetadata struct {
	DICOM     map[string]json.RawMessage  `json:"DICOM"`
	Instances map[string]instanceMetadata `json:"Instances"`
}

type instanceMetadata struct {
	DICOM       map[string]json.RawMessage `json:"DICOM"`
	ImageFrames []imageFrame               `json:"ImageFrames"`
}

type imageFrame struct {
	ID string `json:"ID"`
}

// decodeImageSetMetadata gunzips and parses an image-set metadata blob.
func decodeImageSetMetadata(blob io.Reader) (*imageSetMetadata, error) {
	gz, err := gzip.NewReader(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata blob: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress metadata blob: %w", err)
	}

	var meta imageSetMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse image set metadata: %w", err)
	}
	return &meta, nil
}

// indexedInstance is one expanded instance record with its frame locator.
type indexedInstance struct {
	Dataset *dataset.Dataset
	Locator string
}

// expandImageSet flattens the Patient -> Study -> Series -> Instances
// nesting into one record per instance. Patient, study, and series
// attributes are copied down into each instance record. Sequence tags
// need recursive handling this indexer does not do and are skipped, as
// are tags without a dictionary entry.
func expandImageSet(datastoreID string, meta *imageSetMetadata) []indexedInstance {
	shared := dataset.New()
	applyDICOM(shared, meta.Patient.DICOM)
	applyDICOM(shared, meta.Study.DICOM)

	var instances []indexedInstance
	for seriesUID, series := range meta.Study.Series {
		seriesDataset := shared.Clone()
		applyDICOM(seriesDataset, series.DICOM)
		if !seriesDataset.Has("SeriesInstanceUID") {
			seriesDataset.Set("SeriesInstanceUID", seriesUID)
		}

		for sopUID, instance := range series.Instances {
			ds := seriesDataset.Clone()
			applyDICOM(ds, instance.DICOM)
			if !ds.Has("SOPInstanceUID") {
				ds.Set("SOPInstanceUID", sopUID)
			}

			locator := frameLocator{
				DatastoreID:    datastoreID,
				ImageSetID:     meta.ImageSetID,
				SeriesUID:      ds.GetString("SeriesInstanceUID"),
				SOPInstanceUID: ds.GetString("SOPInstanceUID"),
				FrameID:        nonImagePlaceholder,
			}
			if len(instance.ImageFrames) > 0 {
				locator.FrameID = instance.ImageFrames[0].ID
			}

			instances = append(instances, indexedInstance{
				Dataset: ds,
				Locator: locator.String(),
			})
		}
	}
	return instances
}

// applyDICOM folds one level's DICOM attribute map into a dataset.
func applyDICOM(ds *dataset.Dataset, attributes map[string]json.RawMessage) {
	for keyword, raw := range attributes {
		vr, err := dicomtag.VR(keyword)
		if err != nil {
			// not in the dictionary
			continue
		}
		if vr == "SQ" {
			continue
		}
		values, err := decodeMetadataValue(raw)
		if err != nil {
			continue
		}
		ds.SetElement(keyword, dataset.Element{VR: vr, Values: values})
	}
}

// decodeMetadataValue coerces one attribute value (string, number, or an
// array of either) to its string values.
func decodeMetadataValue(raw json.RawMessage) ([]string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return []string{n.String()}, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		values := make([]string, 0, len(list))
		for _, item := range list {
			itemValues, err := decodeMetadataValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, itemValues...)
		}
		return values, nil
	}
	return nil, fmt.Errorf("unsupported attribute encoding: %s", string(raw))
}
