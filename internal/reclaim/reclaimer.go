// Package reclaim sweeps the asset catalogue for orphans: assets with no
// usage edge, no dependent derivative, and an age past the grace period.
// Record deletion is the sweep; byte deletion is a separate opt-in pass so
// a slow vault never blocks the catalogue walk.
package reclaim

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/franz/media-vault/internal/blob"
	"github.com/franz/media-vault/internal/report"
	"github.com/franz/media-vault/internal/store"
	"github.com/franz/media-vault/internal/util"
	"github.com/schollz/progressbar/v3"
)

// DefaultGracePeriod protects freshly created assets whose usage edge may
// not be registered yet (the create/register window is deliberately not
// transactional)
const DefaultGracePeriod = 15 * time.Minute

// Reclaimer walks the catalogue and removes orphaned assets
type Reclaimer struct {
	store  *store.Store
	blobs  *blob.Store
	logger *report.EventLogger
	grace  time.Duration
	dryRun bool
	purge  bool
}

// Config holds reclaimer configuration
type Config struct {
	Store       *store.Store
	Blobs       *blob.Store // required only when Purge is set
	Logger      *report.EventLogger
	GracePeriod time.Duration // 0 = default; negative = no grace (tests)
	DryRun      bool
	Purge       bool // also remove orphaned bytes from the vault
}

// New creates a new Reclaimer
func New(cfg *Config) *Reclaimer {
	grace := cfg.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	}
	if grace < 0 {
		grace = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = report.NullLogger()
	}

	return &Reclaimer{
		store:  cfg.Store,
		blobs:  cfg.Blobs,
		logger: logger,
		grace:  grace,
		dryRun: cfg.DryRun,
		purge:  cfg.Purge,
	}
}

// Report summarizes one sweep
type Report struct {
	Examined       int
	Reclaimed      int
	Protected      int // kept despite zero edges: has derivatives or inside grace
	Retained       int // kept because referenced
	BytesReclaimed int64
	PurgedObjects  int
	Errors         []error
}

// Sweep examines every asset and deletes the provably orphaned ones.
// Safe to run concurrently with uploads: referenced assets, assets with
// derivatives, and assets younger than the grace period are never touched.
func (r *Reclaimer) Sweep(ctx context.Context) (*Report, error) {
	assets, err := r.store.GetAllAssets()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate assets: %w", err)
	}

	rep := &Report{}
	if len(assets) == 0 {
		util.InfoLog("Nothing to sweep: catalogue is empty")
		return rep, nil
	}

	util.InfoLog("Sweeping %d assets (grace period %v)", len(assets), r.grace)
	if r.dryRun {
		util.InfoLog("DRY-RUN mode: no records will be deleted")
	}

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(assets),
			progressbar.OptionSetDescription("Sweeping"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	var reclaimedURLs []string
	cutoff := time.Now().Add(-r.grace)

	for _, asset := range assets {
		select {
		case <-ctx.Done():
			return rep, ctx.Err()
		default:
		}

		rep.Examined++
		if bar != nil {
			bar.Add(1)
		}

		referenced, err := r.store.IsReferenced(asset.ID)
		if err != nil {
			rep.Errors = append(rep.Errors, err)
			continue
		}
		if referenced {
			rep.Retained++
			continue
		}

		// A derivative keeps its original alive even with zero direct
		// edges; deleting the parent would orphan the crop's lineage
		hasChildren, err := r.store.HasDerivatives(asset.ID)
		if err != nil {
			rep.Errors = append(rep.Errors, err)
			continue
		}
		if hasChildren {
			rep.Protected++
			util.DebugLog("Asset %d protected: parent of a derivative", asset.ID)
			continue
		}

		if asset.CreatedAt.After(cutoff) {
			rep.Protected++
			util.DebugLog("Asset %d protected: inside grace period", asset.ID)
			continue
		}

		if r.dryRun {
			rep.Reclaimed++
			rep.BytesReclaimed += asset.SizeBytes
			util.InfoLog("Would reclaim asset %d (%s)", asset.ID, asset.Hash[:12])
			continue
		}

		if err := r.store.DeleteAsset(asset.ID); err != nil {
			rep.Errors = append(rep.Errors, err)
			continue
		}

		rep.Reclaimed++
		rep.BytesReclaimed += asset.SizeBytes
		reclaimedURLs = append(reclaimedURLs, asset.URL)
		r.logger.LogReclaim(asset.ID, asset.Hash, asset.SizeBytes, "no usage edges")
		util.DebugLog("Reclaimed asset %d (%s)", asset.ID, asset.Hash[:12])
	}

	if bar != nil {
		bar.Finish()
	}

	if r.purge && !r.dryRun {
		r.purgeBytes(ctx, reclaimedURLs, rep)
	}

	util.SuccessLog("Sweep complete: %d examined, %d reclaimed, %d retained, %d protected",
		rep.Examined, rep.Reclaimed, rep.Retained, rep.Protected)

	return rep, nil
}

// purgeBytes removes vault objects for reclaimed assets. Each URL is
// re-checked against the catalogue first: if any asset still points at
// it, the bytes stay.
func (r *Reclaimer) purgeBytes(ctx context.Context, urls []string, rep *Report) {
	if r.blobs == nil {
		util.WarnLog("Purge requested but no vault configured; skipping byte removal")
		return
	}

	for _, url := range urls {
		select {
		case <-ctx.Done():
			return
		default:
		}

		still, err := r.store.FindAssetByURL(url)
		if err != nil {
			rep.Errors = append(rep.Errors, err)
			continue
		}
		if still != nil {
			// Another asset row claims these bytes; leave them
			continue
		}

		err = r.blobs.Remove(url)
		r.logger.LogPurge(url, err)
		if err != nil {
			rep.Errors = append(rep.Errors, err)
			continue
		}
		rep.PurgedObjects++
	}
}
