package main

import (
	"fmt"

	"github.com/franz/media-vault/internal/blob"
	"github.com/franz/media-vault/internal/report"
	"github.com/franz/media-vault/internal/store"
	"github.com/franz/media-vault/internal/util"
	"github.com/spf13/viper"
)

// applyLogFlags configures the leveled logger from global flags
func applyLogFlags() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// openStore opens the catalogue database with NAS pragmas when configured
func openStore() (*store.Store, error) {
	dbPath := viper.GetString("db")
	util.DebugLog("Opening database: %s", dbPath)

	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{
		NetworkOptimized: viper.GetBool("nas"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openVault opens the blob store, selecting the NAS retry profile when
// configured
func openVault() (*blob.Store, error) {
	var retry *util.RetryConfig
	if viper.GetBool("nas") {
		retry = util.NASRetryConfig()
	}

	vault, err := blob.New(viper.GetString("vault"), retry)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	return vault, nil
}

// openEventLogger creates the per-run JSONL event log; on failure it
// degrades to a null logger rather than failing the command
func openEventLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(viper.GetString("artifacts"), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}

	if logger.Path() != "" {
		util.DebugLog("Event log: %s", logger.Path())
	}
	return logger
}

// wireSchemaEvents surfaces schema-drift observations into the event log
func wireSchemaEvents(db *store.Store, logger *report.EventLogger) {
	db.SetAbsentHook(func(table, field string) {
		util.WarnLog("Backend schema is missing %s.%s; writes will omit it", table, field)
		logger.LogSchema(table, field)
	})
}
