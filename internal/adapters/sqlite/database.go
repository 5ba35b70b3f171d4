// Package sqlite contains the SQLite implementation of the local
// metadata store: a normalized patient/study/series/image schema plus a
// tag side-cache, populated through batched, idempotent inserts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/example/dicomcache/internal/dataset"
	"github.com/example/dicomcache/internal/db"
	"github.com/example/dicomcache/internal/dicomtag"
	"github.com/example/dicomcache/internal/ports/secondary"
)

// Tag cache sentinel values. Kept as the literal strings the original
// ctkDICOM tag cache uses so the files stay viewer-compatible.
const (
	// TagNotInInstance marks a tag absent from the instance, so readers
	// skip repeated searches for tags that do not exist.
	TagNotInInstance = "__TAG_NOT_IN_INSTANCE__"
	// ValueIsEmptyString marks a tag whose value really is the empty string.
	ValueIsEmptyString = "__VALUE_IS_EMPTY_STRING__"
	// ValueIsNotStored marks a tag present and non-empty whose value the
	// caller excluded from storage (size or privacy).
	ValueIsNotStored = "__VALUE_IS_NOT_STORED__"
)

// ErrMissingIdentity is returned when a record lacks patient name,
// patient ID, and study instance UID even after backfilling. The insert
// fails; the batch continues.
var ErrMissingIdentity = errors.New("required identity fields missing")

// ErrNoBatch is returned when Insert is called outside a batch session.
var ErrNoBatch = errors.New("no batch insert in progress")

const timestampFormat = "2006-01-02T15:04:05"

// extraPrecacheKeywords are always written to the tag cache in addition
// to the configured precache set: the technical tags a viewer needs
// before it has pixel data.
var extraPrecacheKeywords = []string{
	"StudyInstanceUID", "BitsAllocated", "BitsStored",
	"PixelRepresentation", "WindowCenter", "WindowWidth",
	"RescaleIntercept", "RescaleSlope", "ContentDate",
	"Manufacturer", "PatientPosition",
}

// Config selects which tags are written to the tag cache. Tags are given
// in "GGGG,EEEE" form, as viewers configure them.
type Config struct {
	TagsToPrecache           []string
	TagsToExcludeFromStorage []string
}

type patientKey struct {
	Name string
	ID   string
}

// batchState holds the open transactions and the per-batch dedup caches.
// It exists only between StartBatch and EndBatch/AbortBatch.
type batchState struct {
	meta            *sql.Tx
	tags            *sql.Tx
	tagCacheReady   bool
	patients        map[patientKey]int64
	studies         map[string]struct{}
	series          map[string]struct{}
}

// DICOMDatabase implements secondary.Database over a db.Pair. Not safe
// for concurrent batches; one open batch per instance.
type DICOMDatabase struct {
	pair        *db.Pair
	logger      *zap.Logger
	precache    []string
	excluded    map[string]struct{}
	initialized bool
	batch       *batchState
}

var _ secondary.Database = (*DICOMDatabase)(nil)

// New creates a store over an opened database pair.
func New(pair *db.Pair, cfg Config, logger *zap.Logger) *DICOMDatabase {
	excluded := make(map[string]struct{}, len(cfg.TagsToExcludeFromStorage))
	for _, t := range cfg.TagsToExcludeFromStorage {
		excluded[strings.ToUpper(t)] = struct{}{}
	}
	return &DICOMDatabase{
		pair:     pair,
		logger:   logger,
		precache: cfg.TagsToPrecache,
		excluded: excluded,
	}
}

// Initialize applies or verifies the metadata schema. Idempotent.
func (d *DICOMDatabase) Initialize() error {
	if d.initialized {
		return nil
	}
	if err := d.pair.InitializeSchema(); err != nil {
		return err
	}
	d.initialized = true
	return nil
}

// StartBatch opens transactions on both databases and fresh dedup caches.
func (d *DICOMDatabase) StartBatch(ctx context.Context) error {
	if d.batch != nil {
		return errors.New("batch insert already in progress")
	}

	meta, err := d.pair.Metadata.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metadata transaction: %w", err)
	}
	tags, err := d.pair.TagCache.BeginTx(ctx, nil)
	if err != nil {
		meta.Rollback()
		return fmt.Errorf("failed to begin tag cache transaction: %w", err)
	}

	d.batch = &batchState{
		meta:     meta,
		tags:     tags,
		patients: make(map[patientKey]int64),
		studies:  make(map[string]struct{}),
		series:   make(map[string]struct{}),
	}
	return nil
}

// EndBatch commits both databases and clears per-batch state. The two
// files cannot be committed in one atomic step; the metadata commit goes
// first, and a tag cache commit failure after a successful metadata
// commit is reported, leaving the tag cache short rather than the
// metadata inconsistent.
func (d *DICOMDatabase) EndBatch() error {
	if d.batch == nil {
		return ErrNoBatch
	}
	batch := d.batch
	d.batch = nil

	if err := batch.meta.Commit(); err != nil {
		batch.tags.Rollback()
		return fmt.Errorf("failed to commit metadata batch: %w", err)
	}
	if err := batch.tags.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag cache batch: %w", err)
	}
	return nil
}

// AbortBatch rolls back both databases and clears per-batch state.
func (d *DICOMDatabase) AbortBatch() error {
	if d.batch == nil {
		return ErrNoBatch
	}
	batch := d.batch
	d.batch = nil

	var firstErr error
	if err := batch.meta.Rollback(); err != nil {
		firstErr = fmt.Errorf("failed to roll back metadata batch: %w", err)
	}
	if err := batch.tags.Rollback(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to roll back tag cache batch: %w", err)
	}
	return firstErr
}

// Insert upserts one instance record with its frame locator. The record
// is defaulted and identity-checked first; the patient, image, tag
// cache, series, and study writes then run inside the open batch.
// Returns (false, err) when nothing was written.
func (d *DICOMDatabase) Insert(ctx context.Context, ds *dataset.Dataset, frameLocator string) (bool, error) {
	timestamp := time.Now().Format(timestampFormat)

	ds.ApplyRequiredDefaults()

	if !ds.EnsureIdentity(d.logger) {
		return false, ErrMissingIdentity
	}

	if err := d.Initialize(); err != nil {
		return false, fmt.Errorf("cannot work with database: %w", err)
	}

	if d.batch == nil {
		return false, ErrNoBatch
	}

	dbPatientID, err := d.upsertPatient(ctx, ds, timestamp)
	if err != nil {
		return false, err
	}

	if err := d.upsertImage(ctx, ds, frameLocator, timestamp); err != nil {
		return false, err
	}

	if err := d.cacheInstanceTags(ctx, ds); err != nil {
		return false, err
	}

	if err := d.upsertSeries(ctx, ds, timestamp); err != nil {
		return false, err
	}

	if err := d.upsertStudy(ctx, ds, dbPatientID, timestamp); err != nil {
		return false, err
	}

	return true, nil
}

// upsertPatient finds or creates the patient row for the record and
// returns its database UID. Patients are never updated after creation;
// later records carrying different demographics for the same
// (name, ID) pair keep the originally stored row.
func (d *DICOMDatabase) upsertPatient(ctx context.Context, ds *dataset.Dataset, timestamp string) (int64, error) {
	batch := d.batch
	key := patientKey{Name: ds.GetString("PatientName"), ID: ds.GetString("PatientID")}

	if uid, ok := batch.patients[key]; ok {
		return uid, nil
	}

	var uid int64
	err := batch.meta.QueryRowContext(ctx,
		"SELECT UID FROM Patients WHERE PatientsName = ? AND PatientID = ?",
		key.Name, key.ID,
	).Scan(&uid)

	if errors.Is(err, sql.ErrNoRows) {
		_, err = batch.meta.ExecContext(ctx, `
			INSERT INTO Patients
			('PatientsName', 'PatientID', 'PatientsBirthDate',
			 'PatientsBirthTime', 'PatientsSex', 'PatientsAge',
			 'PatientsComments', 'InsertTimestamp')
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			key.Name, key.ID, ds.GetString("PatientBirthDate"),
			"", ds.GetString("PatientSex"), "",
			"", timestamp,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert patient: %w", err)
		}
		err = batch.meta.QueryRowContext(ctx,
			"SELECT UID FROM Patients WHERE PatientsName = ? AND PatientID = ?",
			key.Name, key.ID,
		).Scan(&uid)
		if err != nil {
			return 0, fmt.Errorf("inserted patient not found: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to query patient: %w", err)
	}

	batch.patients[key] = uid
	return uid, nil
}

// upsertImage writes the image row, replacing any previous row for the
// same SOPInstanceUID. A constraint violation on a fresh insert is a
// benign duplicate: logged and ignored.
func (d *DICOMDatabase) upsertImage(ctx context.Context, ds *dataset.Dataset, frameLocator, timestamp string) error {
	_, err := d.batch.meta.ExecContext(ctx, `
		INSERT OR REPLACE INTO Images
		("SOPInstanceUID", "Filename", "SeriesInstanceUID", "InsertTimestamp")
		VALUES(?, ?, ?, ?)`,
		ds.GetString("SOPInstanceUID"), frameLocator,
		ds.GetString("SeriesInstanceUID"), timestamp,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			d.logger.Warn("ignoring duplicate instance error",
				zap.String("sop_instance_uid", ds.GetString("SOPInstanceUID")),
			)
			return nil
		}
		return fmt.Errorf("failed to insert image: %w", err)
	}
	return nil
}

// tagCacheValue derives the stored value for one precache tag. The
// sentinel selection is explicit so a real tag value can never be
// mistaken for a sentinel.
func (d *DICOMDatabase) tagCacheValue(ds *dataset.Dataset, commaTag string) string {
	if _, excluded := d.excluded[strings.ToUpper(commaTag)]; excluded {
		return ValueIsNotStored
	}

	keyword, err := dicomtag.KeywordForKey(strings.ReplaceAll(commaTag, ",", ""))
	if err != nil {
		// not in the dictionary, so never in a keyword-addressed record
		return TagNotInInstance
	}
	el, ok := ds.Get(keyword)
	if !ok {
		return TagNotInInstance
	}
	if el.Empty() {
		return ValueIsEmptyString
	}
	return ds.GetString(keyword)
}

// cacheInstanceTags writes one tag cache row per precache tag (the
// configured set plus the fixed technical set).
func (d *DICOMDatabase) cacheInstanceTags(ctx context.Context, ds *dataset.Dataset) error {
	batch := d.batch

	if !batch.tagCacheReady {
		if _, err := batch.tags.ExecContext(ctx, db.TagCacheSchemaSQL); err != nil {
			return fmt.Errorf("failed to initialize tag cache: %w", err)
		}
		batch.tagCacheReady = true
	}

	tagsToCache := make([]string, 0, len(d.precache)+len(extraPrecacheKeywords))
	tagsToCache = append(tagsToCache, d.precache...)
	for _, keyword := range extraPrecacheKeywords {
		commaTag, err := dicomtag.KeyWithComma(keyword)
		if err != nil {
			return fmt.Errorf("bad precache keyword %s: %w", keyword, err)
		}
		tagsToCache = append(tagsToCache, commaTag)
	}

	stmt, err := batch.tags.PrepareContext(ctx,
		"INSERT OR REPLACE INTO TagCache VALUES(?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare tag cache insert: %w", err)
	}
	defer stmt.Close()

	sopInstanceUID := ds.GetString("SOPInstanceUID")
	for _, commaTag := range tagsToCache {
		value := d.tagCacheValue(ds, commaTag)
		if _, err := stmt.ExecContext(ctx, sopInstanceUID, strings.ToUpper(commaTag), value); err != nil {
			return fmt.Errorf("failed to write tag cache row: %w", err)
		}
	}
	return nil
}

// upsertSeries inserts the series row unless it already exists. A series
// seen earlier in the batch is skipped without a query.
func (d *DICOMDatabase) upsertSeries(ctx context.Context, ds *dataset.Dataset, timestamp string) error {
	batch := d.batch
	seriesUID := ds.GetString("SeriesInstanceUID")

	if _, ok := batch.series[seriesUID]; ok {
		return nil
	}

	var existing string
	err := batch.meta.QueryRowContext(ctx,
		"SELECT SeriesInstanceUID FROM Series WHERE SeriesInstanceUID = ?",
		seriesUID,
	).Scan(&existing)

	if errors.Is(err, sql.ErrNoRows) {
		_, err = batch.meta.ExecContext(ctx, `
			INSERT INTO Series
			('SeriesInstanceUID', 'StudyInstanceUID', 'SeriesNumber',
			 'SeriesDate', 'SeriesTime', 'SeriesDescription',
			 'Modality', 'BodyPartExamined', 'FrameOfReferenceUID',
			 'AcquisitionNumber', 'ContrastAgent', 'ScanningSequence',
			 'EchoNumber', 'TemporalPosition', 'InsertTimestamp')
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			seriesUID, ds.GetString("StudyInstanceUID"),
			ds.GetString("SeriesNumber"), ds.GetString("SeriesDate"),
			ds.GetString("SeriesTime"), ds.GetString("SeriesDescription"),
			ds.GetString("Modality"), ds.GetString("BodyPartExamined"),
			ds.GetString("FrameOfReferenceUID"), ds.GetString("AcquisitionNumber"),
			ds.GetString("ContrastBolusAgent"), ds.GetString("ScanningSequence"),
			ds.GetString("EchoNumbers"), ds.GetString("TemporalPositionIdentifier"),
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert series: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to query series: %w", err)
	}

	batch.series[seriesUID] = struct{}{}
	return nil
}

// upsertStudy inserts the study row unless it already exists.
func (d *DICOMDatabase) upsertStudy(ctx context.Context, ds *dataset.Dataset, dbPatientID int64, timestamp string) error {
	batch := d.batch
	studyUID := ds.GetString("StudyInstanceUID")

	if _, ok := batch.studies[studyUID]; ok {
		return nil
	}

	var existing string
	err := batch.meta.QueryRowContext(ctx,
		"SELECT StudyInstanceUID FROM Studies WHERE StudyInstanceUID = ?",
		studyUID,
	).Scan(&existing)

	if errors.Is(err, sql.ErrNoRows) {
		_, err = batch.meta.ExecContext(ctx, `
			INSERT INTO Studies
			('StudyInstanceUID', 'PatientsUID', 'StudyID',
			 'StudyDate', 'StudyTime', 'AccessionNumber',
			 'ModalitiesInStudy', 'InstitutionName',
			 'ReferringPhysician', 'PerformingPhysiciansName',
			 'StudyDescription', 'InsertTimestamp')
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			studyUID, dbPatientID, ds.GetString("StudyID"),
			ds.GetString("StudyDate"), ds.GetString("StudyTime"),
			ds.GetString("AccessionNumber"), ds.GetString("ModalitiesInStudy"),
			ds.GetString("InstitutionName"), ds.GetString("ReferringPhysicianName"),
			ds.GetString("PerformingPhysicianName"), ds.GetString("StudyDescription"),
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert study: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to query study: %w", err)
	}

	batch.studies[studyUID] = struct{}{}
	return nil
}

// Counts reports the row counts of the core tables, reading committed
// state outside any batch.
func (d *DICOMDatabase) Counts(ctx context.Context) (*secondary.StoreCounts, error) {
	counts := &secondary.StoreCounts{}
	for _, q := range []struct {
		table string
		dest  *int
	}{
		{"Patients", &counts.Patients},
		{"Studies", &counts.Studies},
		{"Series", &counts.Series},
		{"Images", &counts.Images},
	} {
		err := d.pair.Metadata.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+q.table).Scan(q.dest)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	err := d.pair.TagCache.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM TagCache").Scan(&counts.Tags)
	if err != nil {
		// tag cache is created lazily; absent means empty
		counts.Tags = 0
	}
	return counts, nil
}
