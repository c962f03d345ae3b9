package record

import "strconv"

// DisplayRecord is one row of the projection.
type DisplayRecord struct {
	// Key identifies the row across both sources: "live:db-1",
	// "reference:3", or "reference:#2" for a reference row without an id.
	Key         string
	Provenance  Provenance
	DisplayName string
	Record      *Record
}

// Key builds the display key for a record at index within its source.
func Key(provenance Provenance, id string, index int) string {
	if id == "" {
		return string(provenance) + ":#" + strconv.Itoa(index)
	}
	return string(provenance) + ":" + id
}

// LiveKey is the display key of a persisted live record.
func LiveKey(id string) string {
	return Key(Live, id, 0)
}

// Project merges the live and reference collections into one display list.
// Live rows come first; each source keeps its own order. No deduplication is
// performed between sources.
func Project(live, reference []*Record) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(live)+len(reference))
	out = appendProjected(out, live, Live)
	out = appendProjected(out, reference, Reference)
	return out
}

func appendProjected(out []DisplayRecord, records []*Record, provenance Provenance) []DisplayRecord {
	for i, rec := range records {
		out = append(out, DisplayRecord{
			Key:         Key(provenance, rec.ID, i),
			Provenance:  provenance,
			DisplayName: rec.DisplayName(),
			Record:      rec,
		})
	}
	return out
}
