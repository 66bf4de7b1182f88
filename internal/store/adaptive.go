package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/franz/media-vault/internal/schemacache"
	"github.com/franz/media-vault/internal/util"
)

// Field is one column/value pair in an adaptive write. Optional fields are
// the compile-time-known set of columns a lagging backend deployment may
// not have yet; they are dropped rather than failing the write. Dropping
// an optional field silently loses its value for that write - a deliberate
// availability-over-completeness trade-off.
type Field struct {
	Name     string
	Value    any
	Optional bool
}

// "table X has no column named Y" on INSERT,
// "no such column: Y" (possibly alias-qualified) on UPDATE and SELECT
var missingColumnRe = regexp.MustCompile(`(?:has no column named|no such column:?)\s+(?:[A-Za-z0-9_]+\.)?([A-Za-z0-9_]+)`)

// missingColumn classifies a driver error as a missing-column failure and
// extracts the column name
func missingColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	m := missingColumnRe.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}

// InsertAdaptive inserts a row, surviving missing optional columns.
// Optional fields already known Absent are dropped before the first
// attempt; a missing-column error on an optional field marks it Absent and
// retries without it. Retries are bounded by the optional field count + 1.
// Returns the new row's id.
func (s *Store) InsertAdaptive(table string, fields []Field) (int64, error) {
	payload := s.dropKnownAbsent(table, fields)

	optional := 0
	for _, f := range payload {
		if f.Optional {
			optional++
		}
	}
	maxAttempts := optional + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cols := make([]string, len(payload))
		marks := make([]string, len(payload))
		vals := make([]any, len(payload))
		for i, f := range payload {
			cols[i] = f.Name
			marks[i] = "?"
			vals[i] = f.Value
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.Join(marks, ", "))

		result, err := s.db.Exec(query, vals...)
		if err == nil {
			s.markPresent(table, payload)
			return result.LastInsertId()
		}

		next, retry, adaptErr := s.adapt(table, payload, err)
		if adaptErr != nil {
			return 0, adaptErr
		}
		if !retry {
			return 0, err
		}
		payload = next
	}

	return 0, fmt.Errorf("%w: %s: retries exhausted", util.ErrWriteDegraded, table)
}

// UpdateAdaptive updates a row by id with the same missing-column
// adaptation as InsertAdaptive
func (s *Store) UpdateAdaptive(table string, id int64, fields []Field) error {
	payload := s.dropKnownAbsent(table, fields)

	optional := 0
	for _, f := range payload {
		if f.Optional {
			optional++
		}
	}
	maxAttempts := optional + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if len(payload) == 0 {
			// Every field was dropped; the write degenerates to a no-op
			return nil
		}

		sets := make([]string, len(payload))
		vals := make([]any, 0, len(payload)+1)
		for i, f := range payload {
			sets[i] = f.Name + " = ?"
			vals = append(vals, f.Value)
		}
		vals = append(vals, id)

		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
			table, strings.Join(sets, ", "))

		_, err := s.db.Exec(query, vals...)
		if err == nil {
			s.markPresent(table, payload)
			return nil
		}

		next, retry, adaptErr := s.adapt(table, payload, err)
		if adaptErr != nil {
			return adaptErr
		}
		if !retry {
			return err
		}
		payload = next
	}

	return fmt.Errorf("%w: %s: retries exhausted", util.ErrWriteDegraded, table)
}

// dropKnownAbsent removes optional fields already observed Absent
func (s *Store) dropKnownAbsent(table string, fields []Field) []Field {
	payload := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Optional && s.schema.Get(table, f.Name) == schemacache.Absent {
			util.DebugLog("Adaptive write: dropping %s.%s (known absent)", table, f.Name)
			continue
		}
		payload = append(payload, f)
	}
	return payload
}

// adapt inspects a write error; if it names a missing optional column, the
// column is cached Absent and a reduced payload is returned for retry.
// A missing required column cannot be absorbed and degrades the write;
// every other error propagates unchanged.
func (s *Store) adapt(table string, payload []Field, err error) ([]Field, bool, error) {
	col, ok := missingColumn(err)
	if !ok {
		return nil, false, nil
	}

	for i, f := range payload {
		if f.Name != col {
			continue
		}
		if !f.Optional {
			util.ErrorLog("Adaptive write: required column %s.%s missing", table, col)
			return nil, false, fmt.Errorf("%w: required column %s.%s missing: %v",
				util.ErrWriteDegraded, table, col, err)
		}
		util.WarnLog("Adaptive write: %s.%s missing in backend schema, retrying without it", table, col)
		s.noteAbsent(table, col)
		return append(payload[:i:i], payload[i+1:]...), true, nil
	}

	// The backend complained about a column we never sent
	return nil, false, nil
}

// markPresent records that every optional field in a successful payload
// exists in the backend schema
func (s *Store) markPresent(table string, payload []Field) {
	for _, f := range payload {
		if f.Optional {
			s.schema.MarkPresent(table, f.Name)
		}
	}
}
