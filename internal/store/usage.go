package store

import (
	"fmt"
	"time"
)

// UsageEdge records that a subject referenced an asset in a context.
// Edges are append-only; an asset's liveness is the existence of at least
// one edge (or a dependent derivative).
type UsageEdge struct {
	ID        int64
	AssetID   int64
	SubjectID string
	Context   Context
	IsPublic  bool
	Origin    string // optional v2 column: which surface created the edge
	CreatedAt time.Time
}

// LibraryEntry pairs a usage edge with its asset for library views
type LibraryEntry struct {
	Edge  UsageEdge
	Asset Asset
}

// RegisterUsage records a usage edge. Registering the same
// (asset, subject, context) more than once is fine and intentional: each
// call is an independent reference. Origin is an optional field a lagging
// deployment may drop.
func (s *Store) RegisterUsage(e *UsageEdge) error {
	isPublic := 0
	if e.IsPublic {
		isPublic = 1
	}

	fields := []Field{
		{Name: "asset_id", Value: e.AssetID},
		{Name: "subject_id", Value: e.SubjectID},
		{Name: "context", Value: string(e.Context)},
		{Name: "is_public", Value: isPublic},
	}
	if e.Origin != "" {
		fields = append(fields, Field{Name: "origin", Value: e.Origin, Optional: true})
	}

	id, err := s.InsertAdaptive("usage_edges", fields)
	if err != nil {
		return fmt.Errorf("failed to register usage: %w", err)
	}

	e.ID = id
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

// IsReferenced reports whether at least one usage edge exists for the
// asset. Liveness counts every edge; library-view filtering never applies
// here.
func (s *Store) IsReferenced(assetID int64) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM usage_edges WHERE asset_id = ?", assetID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count usage edges: %w", err)
	}
	return count > 0, nil
}

// ListLibrary returns a subject's media library, newest first. Three
// filters apply, all view-layer business rules:
//   - derivative crops are hidden (only top-level originals),
//   - the same content hash never appears twice (defensive; the hash
//     uniqueness constraint should already guarantee it),
//   - automated avatar/cover edges are hidden when the subject also holds
//     a primary-source edge (raw/post/chat/item) for the same asset.
func (s *Store) ListLibrary(subjectID string) ([]*LibraryEntry, error) {
	query := `
		SELECT e.id, e.asset_id, e.subject_id, e.context, e.is_public,
		       COALESCE(e.origin, ''), e.created_at,
		       a.id, a.hash, a.url, COALESCE(a.mime_type, ''),
		       COALESCE(a.size_bytes, 0), COALESCE(a.parent_id, 0),
		       COALESCE(a.width, 0), COALESCE(a.height, 0), a.created_at
		FROM usage_edges e
		JOIN assets a ON a.id = e.asset_id
		WHERE e.subject_id = ?
		  AND a.parent_id IS NULL
		  AND NOT (
		    e.context IN ('avatar', 'cover')
		    AND EXISTS (
		      SELECT 1 FROM usage_edges p
		      WHERE p.subject_id = e.subject_id
		        AND p.asset_id = e.asset_id
		        AND p.context IN ('raw', 'post', 'chat', 'item')
		    )
		  )
		ORDER BY e.created_at DESC, e.id DESC
	`

	rows, err := s.db.Query(query, subjectID)
	if err != nil {
		if col, ok := missingColumn(err); ok {
			s.noteAbsent("usage_edges", col)
			rows, err = s.db.Query(libraryQueryV1, subjectID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query library: %w", err)
		}
	}
	defer rows.Close()

	var entries []*LibraryEntry
	seenHashes := make(map[string]bool)

	for rows.Next() {
		entry := &LibraryEntry{}
		var ctx string
		var isPublic int
		err := rows.Scan(
			&entry.Edge.ID, &entry.Edge.AssetID, &entry.Edge.SubjectID, &ctx,
			&isPublic, &entry.Edge.Origin, &entry.Edge.CreatedAt,
			&entry.Asset.ID, &entry.Asset.Hash, &entry.Asset.URL, &entry.Asset.MimeType,
			&entry.Asset.SizeBytes, &entry.Asset.ParentID,
			&entry.Asset.Width, &entry.Asset.Height, &entry.Asset.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan library entry: %w", err)
		}
		entry.Edge.Context = Context(ctx)
		entry.Edge.IsPublic = isPublic != 0

		// Defensive hash dedup: never show the same content twice
		if seenHashes[entry.Asset.Hash] {
			continue
		}
		seenHashes[entry.Asset.Hash] = true

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// libraryQueryV1 reads against a deployment that lacks the v2 columns
const libraryQueryV1 = `
	SELECT e.id, e.asset_id, e.subject_id, e.context, e.is_public,
	       '', e.created_at,
	       a.id, a.hash, a.url, COALESCE(a.mime_type, ''),
	       COALESCE(a.size_bytes, 0), COALESCE(a.parent_id, 0),
	       0, 0, a.created_at
	FROM usage_edges e
	JOIN assets a ON a.id = e.asset_id
	WHERE e.subject_id = ?
	  AND a.parent_id IS NULL
	  AND NOT (
	    e.context IN ('avatar', 'cover')
	    AND EXISTS (
	      SELECT 1 FROM usage_edges p
	      WHERE p.subject_id = e.subject_id
	        AND p.asset_id = e.asset_id
	        AND p.context IN ('raw', 'post', 'chat', 'item')
	    )
	  )
	ORDER BY e.created_at DESC, e.id DESC
`

// CountEdgesByContext returns edge counts keyed by context
func (s *Store) CountEdgesByContext() (map[Context]int, error) {
	rows, err := s.db.Query("SELECT context, COUNT(*) FROM usage_edges GROUP BY context")
	if err != nil {
		return nil, fmt.Errorf("failed to count edges: %w", err)
	}
	defer rows.Close()

	counts := make(map[Context]int)
	for rows.Next() {
		var ctx string
		var n int
		if err := rows.Scan(&ctx, &n); err != nil {
			return nil, fmt.Errorf("failed to scan edge count: %w", err)
		}
		counts[Context(ctx)] = n
	}

	return counts, rows.Err()
}

// CountEdges returns the total number of usage edges
func (s *Store) CountEdges() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM usage_edges").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return count, nil
}

// DeleteUsageForAsset removes every edge pointing at an asset. Used by
// explicit cleanup paths; normal edge deletion happens via cascade.
func (s *Store) DeleteUsageForAsset(assetID int64) error {
	_, err := s.db.Exec("DELETE FROM usage_edges WHERE asset_id = ?", assetID)
	if err != nil {
		return fmt.Errorf("failed to delete usage edges: %w", err)
	}
	return nil
}
