// Package watch feeds an inbox directory into the upload pipeline: files
// dropped into the directory are uploaded and archived, turning the vault
// into a drop-folder importer.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/media-vault/internal/pipeline"
	"github.com/franz/media-vault/internal/report"
	"github.com/franz/media-vault/internal/store"
	"github.com/franz/media-vault/internal/util"
	"github.com/fsnotify/fsnotify"
	"github.com/schollz/progressbar/v3"
)

// doneDirName is where successfully imported files are archived
const doneDirName = "done"

// settleDelay gives writers time to finish before a new file is read
const settleDelay = 500 * time.Millisecond

// Watcher imports files from an inbox directory
type Watcher struct {
	pipe      *pipeline.Pipeline
	logger    *report.EventLogger
	subjectID string
	context   store.Context
	isPublic  bool
}

// Config holds watcher configuration
type Config struct {
	Pipeline  *pipeline.Pipeline
	Logger    *report.EventLogger
	SubjectID string
	Context   store.Context
	IsPublic  bool
}

// New creates a new Watcher
func New(cfg *Config) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = report.NullLogger()
	}
	return &Watcher{
		pipe:      cfg.Pipeline,
		logger:    logger,
		subjectID: cfg.SubjectID,
		context:   cfg.Context,
		isPublic:  cfg.IsPublic,
	}
}

// Run backfills files already in the inbox, then watches for new ones
// until the context is cancelled
func (w *Watcher) Run(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("inbox directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", util.ErrInvalidConfig, dir)
	}

	doneDir := filepath.Join(dir, doneDirName)
	if err := os.MkdirAll(doneDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := w.backfill(ctx, dir, doneDir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	util.InfoLog("Watching inbox: %s (subject %s, context %s)", dir, w.subjectID, w.context)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.eligible(event.Name) {
				continue
			}

			// Let the writer finish before reading
			time.Sleep(settleDelay)
			w.importFile(ctx, event.Name, doneDir)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			util.WarnLog("Watcher error: %v", err)
		}
	}
}

// Backfill imports files already present in the inbox without starting a
// watch. Exposed for one-shot imports and tests.
func (w *Watcher) Backfill(ctx context.Context, dir string) error {
	doneDir := filepath.Join(dir, doneDirName)
	if err := os.MkdirAll(doneDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	return w.backfill(ctx, dir, doneDir)
}

func (w *Watcher) backfill(ctx context.Context, dir, doneDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox: %w", err)
	}

	var pending []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !w.eligible(path) {
			continue
		}
		pending = append(pending, path)
	}

	if len(pending) == 0 {
		return nil
	}

	util.InfoLog("Backfilling %d files from inbox", len(pending))

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(pending),
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, path := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w.importFile(ctx, path, doneDir)
		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}

	return nil
}

// importFile uploads one inbox file and archives it on success
func (w *Watcher) importFile(ctx context.Context, path, doneDir string) {
	result, err := w.pipe.UploadFile(ctx, path, &pipeline.Request{
		SubjectID: w.subjectID,
		Context:   w.context,
		IsPublic:  w.isPublic,
		Origin:    "inbox-watcher",
	})
	w.logger.LogWatch(path, err)

	if err != nil {
		util.ErrorLog("Failed to import %s: %v", path, err)
		return
	}

	if result.Deduplicated {
		util.InfoLog("Imported %s (deduplicated, asset %d)", filepath.Base(path), result.Asset.ID)
	} else {
		util.InfoLog("Imported %s (asset %d)", filepath.Base(path), result.Asset.ID)
	}

	dest := filepath.Join(doneDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		util.WarnLog("Failed to archive %s: %v", path, err)
	}
}

// eligible filters out dotfiles, partial writes, and the archive dir
func (w *Watcher) eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") {
		return false
	}
	if base == doneDirName {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return true
}
