package db

// SchemaVersion is the ctkDICOM schema version this store is compatible
// with. A database created by a different version is rejected, not
// migrated; the viewer side owns migrations.
const SchemaVersion = "0.7.0"

// SchemaSQL is the metadata schema, following the ctkDICOMDatabase
// layout so the resulting files are readable by ctk-based viewers. Keep
// the column lists in sync with the inserts in internal/adapters/sqlite.
//
// Foreign keys are declared but not enforced: inserts run in
// patient, image, series, study order within a batch, so enforcement
// must stay off (sqlite's default).
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS SchemaInfo (
	Version VARCHAR(16) PRIMARY KEY
);
INSERT INTO SchemaInfo VALUES('` + SchemaVersion + `');

CREATE TABLE IF NOT EXISTS Patients (
	UID INTEGER PRIMARY KEY AUTOINCREMENT,
	PatientsName VARCHAR(255),
	PatientID VARCHAR(255),
	PatientsBirthDate VARCHAR(255),
	PatientsBirthTime VARCHAR(255),
	PatientsSex VARCHAR(1),
	PatientsAge VARCHAR(10),
	PatientsComments VARCHAR(255),
	InsertTimestamp VARCHAR(20) NOT NULL,
	DisplayedPatientsName VARCHAR(255),
	DisplayedNumberOfStudies INT,
	DisplayedFieldsUpdatedTimestamp DATETIME
);

CREATE TABLE IF NOT EXISTS Studies (
	StudyInstanceUID VARCHAR(64) PRIMARY KEY,
	PatientsUID INT NOT NULL,
	StudyID VARCHAR(255),
	StudyDate VARCHAR(255),
	StudyTime VARCHAR(20),
	AccessionNumber VARCHAR(255),
	ModalitiesInStudy VARCHAR(255),
	InstitutionName VARCHAR(255),
	ReferringPhysician VARCHAR(255),
	PerformingPhysiciansName VARCHAR(255),
	StudyDescription VARCHAR(255),
	InsertTimestamp VARCHAR(20) NOT NULL,
	DisplayedNumberOfSeries INT,
	DisplayedFieldsUpdatedTimestamp DATETIME,
	FOREIGN KEY (PatientsUID) REFERENCES Patients(UID)
);

CREATE TABLE IF NOT EXISTS Series (
	SeriesInstanceUID VARCHAR(64) PRIMARY KEY,
	StudyInstanceUID VARCHAR(64) NOT NULL,
	SeriesNumber INT,
	SeriesDate VARCHAR(255),
	SeriesTime VARCHAR(20),
	SeriesDescription VARCHAR(255),
	Modality VARCHAR(20),
	BodyPartExamined VARCHAR(255),
	FrameOfReferenceUID VARCHAR(64),
	AcquisitionNumber INT,
	ContrastAgent VARCHAR(255),
	ScanningSequence VARCHAR(45),
	EchoNumber INT,
	TemporalPosition INT,
	InsertTimestamp VARCHAR(20) NOT NULL,
	FOREIGN KEY (StudyInstanceUID) REFERENCES Studies(StudyInstanceUID)
);

CREATE TABLE IF NOT EXISTS Images (
	SOPInstanceUID VARCHAR(64) PRIMARY KEY,
	Filename VARCHAR(1024),
	SeriesInstanceUID VARCHAR(64) NOT NULL,
	InsertTimestamp VARCHAR(20) NOT NULL,
	DisplayedFieldsUpdatedTimestamp DATETIME,
	FOREIGN KEY (SeriesInstanceUID) REFERENCES Series(SeriesInstanceUID)
);
`

// TagCacheSchemaSQL is the side-cache schema. One row per
// (instance, tag); re-insertion replaces.
const TagCacheSchemaSQL = `
CREATE TABLE IF NOT EXISTS TagCache (
	SOPInstanceUID,
	Tag,
	Value,
	PRIMARY KEY (SOPInstanceUID, Tag)
);
`

// GetSchemaSQL returns the authoritative metadata schema. Tests use this
// instead of hardcoding CREATE TABLE statements.
func GetSchemaSQL() string {
	return SchemaSQL
}
