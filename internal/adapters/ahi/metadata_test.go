package ahi

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
)

const sampleMetadataJSON = `{
	"ImageSetID": "is-1",
	"Patient": {
		"DICOM": {
			"PatientID": "P1",
			"PatientName": "Doe^John",
			"NotARealKeyword": "ignored"
		}
	},
	"Study": {
		"DICOM": {
			"StudyInstanceUID": "1.2.3",
			"StudyDate": "20240101",
			"ReferencedStudySequence": []
		},
		"Series": {
			"1.2.3.1": {
				"DICOM": {"Modality": "CT"},
				"Instances": {
					"1.2.3.1.1": {
						"DICOM": {"InstanceNumber": 1},
						"ImageFrames": [{"ID": "frame-a"}, {"ID": "frame-b"}]
					},
					"1.2.3.1.2": {
						"DICOM": {},
						"ImageFrames": []
					}
				}
			}
		}
	}
}`

func gzippedMetadata(t *testing.T, doc string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(doc)); err != nil {
		t.Fatalf("failed to compress metadata: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImageSetMetadata(t *testing.T) {
	blob := gzippedMetadata(t, sampleMetadataJSON)

	meta, err := decodeImageSetMetadata(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("decodeImageSetMetadata returned error: %v", err)
	}
	if meta.ImageSetID != "is-1" {
		t.Errorf("ImageSetID = %q, want %q", meta.ImageSetID, "is-1")
	}
	if len(meta.Study.Series) != 1 {
		t.Fatalf("got %d series, want 1", len(meta.Study.Series))
	}
	if got := len(meta.Study.Series["1.2.3.1"].Instances); got != 2 {
		t.Fatalf("got %d instances, want 2", got)
	}
}

func TestDecodeImageSetMetadataRejectsPlainJSON(t *testing.T) {
	if _, err := decodeImageSetMetadata(strings.NewReader(sampleMetadataJSON)); err == nil {
		t.Fatal("decodeImageSetMetadata accepted uncompressed input")
	}
}

func TestExpandImageSet(t *testing.T) {
	meta, err := decodeImageSetMetadata(bytes.NewReader(gzippedMetadata(t, sampleMetadataJSON)))
	if err != nil {
		t.Fatalf("decodeImageSetMetadata returned error: %v", err)
	}

	instances := expandImageSet("ds-1", meta)
	if len(instances) != 2 {
		t.Fatalf("got %d instances, want 2", len(instances))
	}

	byUID := make(map[string]indexedInstance)
	for _, instance := range instances {
		byUID[instance.Dataset.GetString("SOPInstanceUID")] = instance
	}

	imaging, ok := byUID["1.2.3.1.1"]
	if !ok {
		t.Fatal("instance 1.2.3.1.1 missing from expansion")
	}
	// ancestor attributes fold down into every instance
	if got := imaging.Dataset.GetString("PatientID"); got != "P1" {
		t.Errorf("PatientID = %q, want %q", got, "P1")
	}
	if got := imaging.Dataset.GetString("StudyInstanceUID"); got != "1.2.3" {
		t.Errorf("StudyInstanceUID = %q, want %q", got, "1.2.3")
	}
	if got := imaging.Dataset.GetString("Modality"); got != "CT" {
		t.Errorf("Modality = %q, want %q", got, "CT")
	}
	if got := imaging.Dataset.GetString("SeriesInstanceUID"); got != "1.2.3.1" {
		t.Errorf("SeriesInstanceUID = %q, want %q", got, "1.2.3.1")
	}
	if got := imaging.Dataset.GetString("InstanceNumber"); got != "1" {
		t.Errorf("InstanceNumber = %q, want %q", got, "1")
	}
	if imaging.Dataset.Has("ReferencedStudySequence") {
		t.Error("sequence attribute should not be expanded")
	}
	if imaging.Dataset.Has("NotARealKeyword") {
		t.Error("unknown keyword should be skipped")
	}
	// locator points at the first frame
	if want := "ahi://ds-1/is-1/1.2.3.1/1.2.3.1.1/frame-a"; imaging.Locator != want {
		t.Errorf("locator = %q, want %q", imaging.Locator, want)
	}

	nonImage, ok := byUID["1.2.3.1.2"]
	if !ok {
		t.Fatal("instance 1.2.3.1.2 missing from expansion")
	}
	if want := "ahi://ds-1/is-1/1.2.3.1/1.2.3.1.2/" + nonImagePlaceholder; nonImage.Locator != want {
		t.Errorf("non-image locator = %q, want %q", nonImage.Locator, want)
	}
}
