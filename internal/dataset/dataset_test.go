package dataset_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/example/dicomcache/internal/dataset"
)

func TestGetStringJoinsMultipleValues(t *testing.T) {
	ds := dataset.New()
	ds.SetElement("WindowCenter", dataset.Element{VR: "DS", Values: []string{"40", "400"}})

	if got := ds.GetString("WindowCenter"); got != `40\400` {
		t.Errorf("GetString(WindowCenter) = %q, want %q", got, `40\400`)
	}
}

func TestGetStringAbsent(t *testing.T) {
	ds := dataset.New()
	if got := ds.GetString("Modality"); got != "" {
		t.Errorf("GetString on absent keyword = %q, want empty", got)
	}
}

func TestApplyRequiredDefaults(t *testing.T) {
	ds := dataset.New()
	ds.Set("PatientID", "P1")
	ds.ApplyRequiredDefaults()

	for _, keyword := range dataset.RequiredTags {
		if !ds.Has(keyword) {
			t.Errorf("required tag %s missing after defaults", keyword)
		}
	}
	if got := ds.GetString("PatientID"); got != "P1" {
		t.Errorf("defaults overwrote PatientID: %q", got)
	}
	if got := ds.GetString("Modality"); got != "" {
		t.Errorf("defaulted Modality = %q, want empty", got)
	}
}

func TestEnsureIdentityBackfill(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name        string
		patientName string
		patientID   string
		studyUID    string
		ok          bool
		wantID      string
		wantName    string
	}{
		{"complete", "Doe^John", "P1", "S1", true, "P1", "Doe^John"},
		{"id from study", "", "", "S1", true, "S1", "S1"},
		{"name from id", "", "P1", "S1", true, "P1", "P1"},
		{"all empty", "", "", "", false, "", ""},
		{"no study", "Doe^John", "P1", "", false, "P1", "Doe^John"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := dataset.New()
			ds.Set("PatientName", tt.patientName)
			ds.Set("PatientID", tt.patientID)
			ds.Set("StudyInstanceUID", tt.studyUID)

			if got := ds.EnsureIdentity(logger); got != tt.ok {
				t.Fatalf("EnsureIdentity = %v, want %v", got, tt.ok)
			}
			if !tt.ok {
				return
			}
			if got := ds.GetString("PatientID"); got != tt.wantID {
				t.Errorf("PatientID = %q, want %q", got, tt.wantID)
			}
			if got := ds.GetString("PatientName"); got != tt.wantName {
				t.Errorf("PatientName = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ds := dataset.New()
	ds.Set("Modality", "CT")

	clone := ds.Clone()
	clone.Set("Modality", "MR")
	clone.Set("SOPInstanceUID", "I1")

	if got := ds.GetString("Modality"); got != "CT" {
		t.Errorf("mutating clone changed original Modality: %q", got)
	}
	if ds.Has("SOPInstanceUID") {
		t.Error("mutating clone added keyword to original")
	}
}

func TestCompositePatientID(t *testing.T) {
	got := dataset.CompositePatientID("P1", "Doe^John", "19700101")
	if got != "P1-19700101-Doe^John" {
		t.Errorf("CompositePatientID = %q", got)
	}
}
