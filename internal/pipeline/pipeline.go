// Package pipeline orchestrates the dedup upload path: preprocess, hash,
// catalogue lookup, persist, register usage. Identical bytes are stored
// exactly once no matter how many subjects upload them or how often.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/franz/media-vault/internal/blob"
	"github.com/franz/media-vault/internal/hash"
	"github.com/franz/media-vault/internal/report"
	"github.com/franz/media-vault/internal/store"
	"github.com/franz/media-vault/internal/util"
)

// Default preprocessing knobs
const (
	DefaultCompressThreshold = 2 << 20 // 2 MiB
	DefaultJPEGQuality       = 85
)

// Pipeline runs uploads end to end. One instance is shared across request
// contexts; all coordination happens through the store's uniqueness
// constraint, never through in-memory state.
type Pipeline struct {
	store             *store.Store
	blobs             *blob.Store
	logger            *report.EventLogger
	compressThreshold int64
	jpegQuality       int
}

// Config holds pipeline configuration
type Config struct {
	Store             *store.Store
	Blobs             *blob.Store
	Logger            *report.EventLogger
	CompressThreshold int64 // Recompress images larger than this (0 = default)
	JPEGQuality       int   // JPEG quality for recompression (0 = default)
}

// New creates a new Pipeline
func New(cfg *Config) *Pipeline {
	if cfg.CompressThreshold <= 0 {
		cfg.CompressThreshold = DefaultCompressThreshold
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.Logger == nil {
		cfg.Logger = report.NullLogger()
	}

	return &Pipeline{
		store:             cfg.Store,
		blobs:             cfg.Blobs,
		logger:            cfg.Logger,
		compressThreshold: cfg.CompressThreshold,
		jpegQuality:       cfg.JPEGQuality,
	}
}

// Request is one upload: raw bytes plus the identity and context supplied
// by the caller
type Request struct {
	SubjectID string
	Context   store.Context
	Data      []byte
	Filename  string
	MimeType  string // detected from content when empty
	IsPublic  bool
	ParentID  int64  // non-zero when uploading a derivative (crop)
	Origin    string // optional provenance note for the usage edge
}

// Result is the outcome of an upload
type Result struct {
	URL          string
	Hash         string
	Deduplicated bool
	Asset        *store.Asset
}

// Upload runs the pipeline for one file. Preprocessing failures are
// swallowed (the original bytes are used); byte-store and hash failures
// are fatal; a failed usage registration is logged but never fails an
// upload whose asset already exists.
func (p *Pipeline) Upload(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	if req.SubjectID == "" {
		return nil, fmt.Errorf("%w: subject is required", util.ErrInvalidConfig)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty input", util.ErrHashFailed)
	}
	if _, err := store.ParseContext(string(req.Context)); err != nil {
		return nil, err
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(req.Data)
	}

	// Step 1: preprocess. Never fatal - on any failure the original
	// bytes continue through the pipeline.
	data, width, height := p.preprocess(req.Data, mimeType)
	if len(data) != len(req.Data) {
		// Recompression re-encodes as JPEG
		mimeType = "image/jpeg"
	}

	// Step 2: content digest
	digest := hash.Bytes(data)

	// Step 3: catalogue lookup
	existing, err := p.store.FindAssetByHash(digest)
	if err != nil {
		return nil, fmt.Errorf("asset lookup failed: %w", err)
	}

	var asset *store.Asset
	deduplicated := false

	if existing != nil {
		asset = existing
		deduplicated = true
		p.logger.LogDedup(req.SubjectID, string(req.Context), digest, asset.ID)
		util.DebugLog("Dedup hit: %s -> asset %d", digest[:12], asset.ID)
	} else {
		// Step 4: persist bytes first, then the catalogue row. Order
		// matters: an asset row must never point at bytes that are not
		// durably stored.
		key := p.blobs.Key(req.SubjectID, string(req.Context), req.Filename)
		url, err := p.blobs.Put(ctx, key, data)
		if err != nil {
			p.logger.LogError(req.SubjectID, string(req.Context), err)
			return nil, err
		}

		asset = &store.Asset{
			Hash:      digest,
			URL:       url,
			MimeType:  mimeType,
			SizeBytes: int64(len(data)),
			ParentID:  req.ParentID,
			Width:     width,
			Height:    height,
		}

		err = p.store.CreateAsset(asset)
		switch {
		case err == nil:
			p.logger.LogUpload(req.SubjectID, string(req.Context), digest, url,
				asset.ID, asset.SizeBytes, time.Since(start))

		case errors.Is(err, util.ErrConflict):
			// A concurrent upload of identical content won the race.
			// Converge on its asset and drop our now-unreferenced bytes.
			winner, findErr := p.store.FindAssetByHash(digest)
			if findErr != nil || winner == nil {
				return nil, fmt.Errorf("conflict fallback lookup failed: %w", findErr)
			}
			if removeErr := p.blobs.Remove(url); removeErr != nil {
				util.WarnLog("Failed to remove losing upload %s: %v", url, removeErr)
			}
			asset = winner
			deduplicated = true
			p.logger.LogConflict(req.SubjectID, digest, asset.ID)
			util.DebugLog("Create race on %s resolved to asset %d", digest[:12], asset.ID)

		default:
			p.logger.LogError(req.SubjectID, string(req.Context), err)
			return nil, err
		}
	}

	// Step 5: register usage, unconditionally. A missing edge only risks
	// premature reclamation, which the reclaimer's grace period covers;
	// failing the upload here would lose nothing and cost everything.
	edge := &store.UsageEdge{
		AssetID:   asset.ID,
		SubjectID: req.SubjectID,
		Context:   req.Context,
		IsPublic:  req.IsPublic,
		Origin:    req.Origin,
	}
	regErr := p.store.RegisterUsage(edge)
	if regErr != nil {
		util.WarnLog("Usage registration failed for asset %d: %v", asset.ID, regErr)
	}
	p.logger.LogRegister(req.SubjectID, string(req.Context), asset.ID, regErr)

	return &Result{
		URL:          asset.URL,
		Hash:         asset.Hash,
		Deduplicated: deduplicated,
		Asset:        asset,
	}, nil
}

// UploadFile is a convenience wrapper that reads a file from disk and
// runs it through the pipeline. A read failure surfaces as a digest
// failure: the input stream could not be consumed.
func (p *Pipeline) UploadFile(ctx context.Context, path string, req *Request) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrHashFailed, err)
	}

	r := *req
	r.Data = data
	if r.Filename == "" {
		r.Filename = path
	}
	return p.Upload(ctx, &r)
}
