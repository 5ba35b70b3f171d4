// Package wire provides dependency injection for the application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/dicomcache/internal/adapters/ahi"
	"github.com/example/dicomcache/internal/adapters/dicomweb"
	"github.com/example/dicomcache/internal/adapters/sqlite"
	"github.com/example/dicomcache/internal/app"
	"github.com/example/dicomcache/internal/config"
	"github.com/example/dicomcache/internal/db"
	"github.com/example/dicomcache/internal/ports/primary"
	"github.com/example/dicomcache/internal/ports/secondary"
)

var (
	cfg          *config.Config
	configDir    string
	logger       *zap.Logger
	database     *sqlite.DICOMDatabase
	webStore     *dicomweb.Store
	ahiStore     *ahi.Store
	indexService primary.IndexService
	once         sync.Once
)

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// ConfigDir returns the directory the configuration was loaded from.
func ConfigDir() string {
	once.Do(initServices)
	return configDir
}

// Logger returns the singleton logger.
func Logger() *zap.Logger {
	once.Do(initServices)
	return logger
}

// Database returns the singleton local metadata store.
func Database() *sqlite.DICOMDatabase {
	once.Do(initServices)
	return database
}

// IndexService returns the singleton IndexService instance.
func IndexService() primary.IndexService {
	once.Do(initServices)
	return indexService
}

// AHIStore returns the HealthImaging store, or an error when no
// datastore is configured.
func AHIStore() (*ahi.Store, error) {
	once.Do(initServices)
	if ahiStore == nil {
		return nil, errNoDatastore
	}
	return ahiStore, nil
}

// FrameService returns a FrameService routed by the locators' scheme:
// ahi:// locators go to the HealthImaging store, everything else to the
// DICOMweb store.
func FrameService(locators []string) (primary.FrameService, error) {
	once.Do(initServices)

	var store secondary.RemoteStore
	if len(locators) > 0 && strings.HasPrefix(locators[0], "ahi://") {
		if ahiStore == nil {
			return nil, errNoDatastore
		}
		store = ahiStore
	} else {
		if webStore == nil {
			return nil, errNoEndpoint
		}
		store = webStore
	}
	return app.NewFrameService(store, logger), nil
}

var (
	errNoDatastore = errors.New("no HealthImaging datastore configured")
	errNoEndpoint  = errors.New("no DICOMweb endpoint configured")
)

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	dir, err := config.DefaultConfigDir()
	if err != nil {
		log.Fatalf("failed to resolve config directory: %v", err)
	}
	configDir = dir

	cfg, err = config.LoadOrDefault(dir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger = newLogger(cfg.LogLevel)

	pair, err := db.Open(cfg.DatabaseDir(dir))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	database = sqlite.New(pair, sqlite.Config{
		TagsToPrecache:           cfg.TagsToPrecache,
		TagsToExcludeFromStorage: cfg.TagsToExcludeFromStorage,
	}, logger)

	var studies app.StudyIndexer
	if cfg.DICOMwebURL != "" {
		webStore = dicomweb.New(cfg.DICOMwebURL, database, logger, dicomweb.Options{
			Headers:     cfg.DICOMwebHeaders,
			Synchronous: cfg.SynchronousFrames,
		})
		studies = webStore
	}

	var imageSets app.ImageSetIndexer
	if cfg.DatastoreID != "" {
		client, err := ahi.NewImagingClient(context.Background(), cfg.AWSRegion)
		if err != nil {
			log.Fatalf("failed to create HealthImaging client: %v", err)
		}
		frameClient := ahi.NewImagingFrameClient(client, logger)
		ahiStore = ahi.New(client, cfg.DatastoreID, database, frameClient, ahi.Options{}, logger)
		imageSets = ahiStore
	}

	indexService = app.NewIndexService(studies, imageSets, logger)
}

func newLogger(level string) *zap.Logger {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stderr"}
	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			logCfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}
	built, err := logCfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return built
}
