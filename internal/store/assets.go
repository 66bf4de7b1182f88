package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/franz/media-vault/internal/util"
)

// Asset is one content-addressed stored binary object. ParentID is non-zero
// when the asset is a derivative (a crop) of another asset; the chain is at
// most one level deep, enforced at creation.
type Asset struct {
	ID        int64
	Hash      string
	URL       string
	MimeType  string
	SizeBytes int64
	ParentID  int64 // 0 = top-level original
	Width     int   // 0 = unknown (pre-v2 deployment or non-image)
	Height    int
	CreatedAt time.Time
}

const assetColumns = `id, hash, url, COALESCE(mime_type, ''), COALESCE(size_bytes, 0),
	       COALESCE(parent_id, 0), COALESCE(width, 0), COALESCE(height, 0), created_at`

// assetColumnsV1 omits the v2 columns so reads work against a lagging deployment
const assetColumnsV1 = `id, hash, url, COALESCE(mime_type, ''), COALESCE(size_bytes, 0),
	       COALESCE(parent_id, 0), 0, 0, created_at`

func (s *Store) scanAsset(row *sql.Row) (*Asset, error) {
	a := &Asset{}
	err := row.Scan(
		&a.ID, &a.Hash, &a.URL, &a.MimeType, &a.SizeBytes,
		&a.ParentID, &a.Width, &a.Height, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// queryAssetBy fetches one asset by an indexed column, falling back to the
// v1 column set when the deployment lacks the v2 columns
func (s *Store) queryAssetBy(column string, value any) (*Asset, error) {
	query := fmt.Sprintf("SELECT %s FROM assets WHERE %s = ?", assetColumns, column)
	a, err := s.scanAsset(s.db.QueryRow(query, value))
	if err == nil {
		return a, nil
	}

	if col, ok := missingColumn(err); ok {
		s.noteAbsent("assets", col)
		query = fmt.Sprintf("SELECT %s FROM assets WHERE %s = ?", assetColumnsV1, column)
		a, err = s.scanAsset(s.db.QueryRow(query, value))
		if err == nil {
			return a, nil
		}
	}

	return nil, fmt.Errorf("failed to get asset: %w", err)
}

// FindAssetByHash returns the asset with the given content hash, or nil
// if no asset matches
func (s *Store) FindAssetByHash(contentHash string) (*Asset, error) {
	return s.queryAssetBy("hash", contentHash)
}

// FindAssetByURL returns the asset stored at the given durable location,
// or nil if no asset matches
func (s *Store) FindAssetByURL(url string) (*Asset, error) {
	return s.queryAssetBy("url", url)
}

// GetAssetByID returns an asset by id, or nil if it does not exist
func (s *Store) GetAssetByID(id int64) (*Asset, error) {
	return s.queryAssetBy("id", id)
}

// FindParent resolves one level of lineage: the original an asset was
// derived from. Returns nil for top-level assets.
func (s *Store) FindParent(assetID int64) (*Asset, error) {
	a, err := s.GetAssetByID(assetID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("asset %d: %w", assetID, util.ErrNotFound)
	}
	if a.ParentID == 0 {
		return nil, nil
	}
	return s.GetAssetByID(a.ParentID)
}

// CreateAsset inserts a new asset row. Fails with util.ErrConflict when a
// concurrent create for the same hash already succeeded; callers must fall
// back to FindAssetByHash, not treat it as fatal. Width and height are
// optional fields a lagging deployment may drop.
func (s *Store) CreateAsset(a *Asset) error {
	if a.ParentID != 0 {
		parent, err := s.GetAssetByID(a.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("parent asset %d: %w", a.ParentID, util.ErrNotFound)
		}
		if parent.ParentID != 0 {
			// A crop's parent is always an original, never another crop
			return fmt.Errorf("asset %d is itself a derivative: %w", a.ParentID, util.ErrLineageDepth)
		}
	}

	fields := []Field{
		{Name: "hash", Value: a.Hash},
		{Name: "url", Value: a.URL},
		{Name: "mime_type", Value: a.MimeType},
		{Name: "size_bytes", Value: a.SizeBytes},
	}
	if a.ParentID != 0 {
		fields = append(fields, Field{Name: "parent_id", Value: a.ParentID})
	}
	if a.Width > 0 {
		fields = append(fields, Field{Name: "width", Value: a.Width, Optional: true})
	}
	if a.Height > 0 {
		fields = append(fields, Field{Name: "height", Value: a.Height, Optional: true})
	}

	id, err := s.InsertAdaptive("assets", fields)
	if err != nil {
		if isUniqueViolation(err, "assets.hash") {
			return fmt.Errorf("asset with hash %s already exists: %w", a.Hash, util.ErrConflict)
		}
		return fmt.Errorf("failed to create asset: %w", err)
	}

	a.ID = id
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

// SetParent backfills lineage on an existing asset. The target parent must
// be a top-level original.
func (s *Store) SetParent(assetID, parentID int64) error {
	parent, err := s.GetAssetByID(parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("parent asset %d: %w", parentID, util.ErrNotFound)
	}
	if parent.ParentID != 0 {
		return fmt.Errorf("asset %d is itself a derivative: %w", parentID, util.ErrLineageDepth)
	}

	return s.UpdateAdaptive("assets", assetID, []Field{
		{Name: "parent_id", Value: parentID},
	})
}

// HasDerivatives reports whether any asset names this one as its parent
func (s *Store) HasDerivatives(assetID int64) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM assets WHERE parent_id = ?", assetID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count derivatives: %w", err)
	}
	return count > 0, nil
}

// DeleteAsset removes an asset row. Usage edges cascade.
func (s *Store) DeleteAsset(id int64) error {
	_, err := s.db.Exec("DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// GetAllAssets retrieves every asset, oldest first
func (s *Store) GetAllAssets() ([]*Asset, error) {
	query := fmt.Sprintf("SELECT %s FROM assets ORDER BY id", assetColumns)
	rows, err := s.db.Query(query)
	if err != nil {
		if col, ok := missingColumn(err); ok {
			s.noteAbsent("assets", col)
			query = fmt.Sprintf("SELECT %s FROM assets ORDER BY id", assetColumnsV1)
			rows, err = s.db.Query(query)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query assets: %w", err)
		}
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a := &Asset{}
		err := rows.Scan(
			&a.ID, &a.Hash, &a.URL, &a.MimeType, &a.SizeBytes,
			&a.ParentID, &a.Width, &a.Height, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}

	return assets, rows.Err()
}

// CountAssets returns the number of asset rows
func (s *Store) CountAssets() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM assets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}

// TotalAssetBytes returns the summed size of all stored assets
func (s *Store) TotalAssetBytes() (int64, error) {
	var total int64
	err := s.db.QueryRow("SELECT COALESCE(SUM(size_bytes), 0) FROM assets").Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum asset bytes: %w", err)
	}
	return total, nil
}

// isUniqueViolation checks whether an error is a UNIQUE constraint failure
// on the named index
func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, constraint)
}
