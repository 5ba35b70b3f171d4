// Package dataset holds the flat per-instance metadata record that remote
// store adapters produce and the local store consumes. A Dataset is the
// instance-level view after any patient/study/series-level attributes have
// been folded in by the adapter.
package dataset

import (
	"go.uber.org/zap"
)

// RequiredTags are defaulted to the empty string before insert so the
// store never has to distinguish "absent" from "empty" at the row level.
var RequiredTags = []string{
	"PatientName", "PatientID", "PatientBirthDate",
	"PatientSex", "StudyID", "StudyDate", "StudyTime",
	"StudyDescription", "AccessionNumber", "ModalitiesInStudy",
	"InstitutionName", "ReferringPhysicianName",
	"PerformingPhysicianName", "SeriesInstanceUID",
	"StudyInstanceUID", "SeriesNumber", "SeriesDate",
	"SeriesTime", "SeriesDescription", "Modality",
	"BodyPartExamined", "FrameOfReferenceUID",
	"AcquisitionNumber", "ContrastBolusAgent",
	"ScanningSequence", "EchoNumbers",
	"TemporalPositionIdentifier", "SOPInstanceUID",
	"ContentDate", "Manufacturer", "PatientPosition",
}

// Element is one attribute value: its declared VR and the raw values as
// strings. Multi-valued attributes keep one string per value.
type Element struct {
	VR     string
	Values []string
}

// Empty reports whether the element carries no usable value.
func (e Element) Empty() bool {
	if len(e.Values) == 0 {
		return true
	}
	for _, v := range e.Values {
		if v != "" {
			return false
		}
	}
	return true
}

// Dataset is a flat keyword-addressed attribute set for one instance.
type Dataset struct {
	elements map[string]Element
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{elements: make(map[string]Element)}
}

// Set stores a single-valued string attribute with an unspecified VR.
func (d *Dataset) Set(keyword, value string) {
	d.elements[keyword] = Element{Values: []string{value}}
}

// SetElement stores an attribute with its VR and values.
func (d *Dataset) SetElement(keyword string, el Element) {
	d.elements[keyword] = el
}

// Has reports whether the keyword is present in the dataset.
func (d *Dataset) Has(keyword string) bool {
	_, ok := d.elements[keyword]
	return ok
}

// Get returns the element for a keyword.
func (d *Dataset) Get(keyword string) (Element, bool) {
	el, ok := d.elements[keyword]
	return el, ok
}

// GetString returns the attribute value as a single string. Multi-valued
// attributes are joined with the DICOM backslash separator. Absent
// attributes return the empty string.
func (d *Dataset) GetString(keyword string) string {
	el, ok := d.elements[keyword]
	if !ok || len(el.Values) == 0 {
		return ""
	}
	if len(el.Values) == 1 {
		return el.Values[0]
	}
	joined := el.Values[0]
	for _, v := range el.Values[1:] {
		joined += `\` + v
	}
	return joined
}

// Keywords returns all keywords present in the dataset.
func (d *Dataset) Keywords() []string {
	keys := make([]string, 0, len(d.elements))
	for k := range d.elements {
		keys = append(keys, k)
	}
	return keys
}

// Clone returns a deep copy. Adapters use this to fold shared
// patient/study/series attributes into each instance record.
func (d *Dataset) Clone() *Dataset {
	c := New()
	for k, el := range d.elements {
		values := make([]string, len(el.Values))
		copy(values, el.Values)
		c.elements[k] = Element{VR: el.VR, Values: values}
	}
	return c
}

// ApplyRequiredDefaults sets every required tag missing from the dataset
// to the empty string.
func (d *Dataset) ApplyRequiredDefaults() {
	for _, keyword := range RequiredTags {
		if !d.Has(keyword) {
			d.Set(keyword, "")
		}
	}
}

// EnsureIdentity validates the minimum identity fields required for
// insert, backfilling PatientID from StudyInstanceUID and PatientName
// from PatientID where possible. Returns false if after backfilling any
// of PatientName, PatientID, or StudyInstanceUID is still empty.
func (d *Dataset) EnsureIdentity(logger *zap.Logger) bool {
	if d.GetString("PatientID") == "" && d.GetString("StudyInstanceUID") != "" {
		logger.Warn("patient ID is empty, using study instance UID as patient ID",
			zap.String("study_instance_uid", d.GetString("StudyInstanceUID")),
		)
		d.Set("PatientID", d.GetString("StudyInstanceUID"))
	}
	if d.GetString("PatientName") == "" && d.GetString("PatientID") != "" {
		d.Set("PatientName", d.GetString("PatientID"))
	}
	if d.GetString("PatientName") == "" ||
		d.GetString("StudyInstanceUID") == "" ||
		d.GetString("PatientID") == "" {
		logger.Error("required identity fields missing from dataset",
			zap.String("patient_name", d.GetString("PatientName")),
			zap.String("patient_id", d.GetString("PatientID")),
			zap.String("study_instance_uid", d.GetString("StudyInstanceUID")),
		)
		return false
	}
	return true
}

// CompositePatientID builds the pseudo-unique patient identifier used to
// recognize the same patient across batches.
func CompositePatientID(patientID, patientName, patientBirthDate string) string {
	return patientID + "-" + patientBirthDate + "-" + patientName
}
