package config

import (
	"path/filepath"
	"testing"
)

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{
		Version:           "1",
		DICOMwebURL:       "https://pacs.example.com/dicomweb",
		DICOMwebHeaders:   map[string]string{"Authorization": "Bearer token"},
		SynchronousFrames: true,
		DatastoreID:       "ds-1",
		AWSRegion:         "us-east-1",
		TagsToPrecache:    []string{"0008,0070"},
		LogLevel:          "debug",
	}
	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig returned error: %v", err)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if loaded.DICOMwebURL != cfg.DICOMwebURL {
		t.Errorf("DICOMwebURL = %q, want %q", loaded.DICOMwebURL, cfg.DICOMwebURL)
	}
	if loaded.DICOMwebHeaders["Authorization"] != "Bearer token" {
		t.Errorf("headers not preserved: %v", loaded.DICOMwebHeaders)
	}
	if !loaded.SynchronousFrames {
		t.Error("SynchronousFrames not preserved")
	}
	if loaded.DatastoreID != "ds-1" || loaded.AWSRegion != "us-east-1" {
		t.Errorf("datastore settings not preserved: %+v", loaded)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("LoadConfig succeeded with no config file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrDefault returned error: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("default Version = %q, want %q", cfg.Version, "1")
	}
}

func TestDatabaseDir(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{}
	if got := cfg.DatabaseDir(dir); got != dir {
		t.Errorf("DatabaseDir = %q, want config dir %q", got, dir)
	}

	override := filepath.Join(dir, "elsewhere")
	cfg.CacheDir = override
	if got := cfg.DatabaseDir(dir); got != override {
		t.Errorf("DatabaseDir = %q, want override %q", got, override)
	}
}
