package domain

import (
	"sort"
	"time"
)

// RunStateVersion is the schema version written by this build.
const RunStateVersion = 1

// DatasetDescriptor is one downloadable dataset as listed by the metastore.
// It is rebuilt on every run and never persisted.
type DatasetDescriptor struct {
	Identifier  string
	Title       string
	DownloadURL string
	ModifiedAt  time.Time
}

// RunRecord is the persisted fact "dataset X was last processed successfully".
// LastProcessedAt holds the upstream modification time of the processed version.
type RunRecord struct {
	DatasetID       string    `json:"dataset_id" db:"dataset_id"`
	LastProcessedAt time.Time `json:"last_processed_at" db:"last_processed_at"`
	ProcessedAt     time.Time `json:"processed_at" db:"processed_at"`
	OutputKey       string    `json:"output_key" db:"output_key"`
	Checksum        string    `json:"checksum" db:"checksum"`
	Bytes           int64     `json:"bytes" db:"bytes"`
}

// RunState is the whole run metadata store as it is persisted.
type RunState struct {
	Version int                  `json:"version"`
	LastRun time.Time            `json:"last_run"`
	Records map[string]RunRecord `json:"records"`
}

// NewRunState returns an empty state.
func NewRunState() *RunState {
	return &RunState{
		Version: RunStateVersion,
		Records: make(map[string]RunRecord),
	}
}

// LastProcessed implements LastProcessedLookup.
func (s *RunState) LastProcessed(id string) (time.Time, bool) {
	rec, ok := s.Records[id]
	if !ok {
		return time.Time{}, false
	}
	return rec.LastProcessedAt, true
}

// Put inserts or overwrites the record for rec.DatasetID.
func (s *RunState) Put(rec RunRecord) {
	if s.Records == nil {
		s.Records = make(map[string]RunRecord)
	}
	s.Records[rec.DatasetID] = rec
}

// Sorted returns the records ordered by dataset identifier.
func (s *RunState) Sorted() []RunRecord {
	out := make([]RunRecord, 0, len(s.Records))
	for _, rec := range s.Records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DatasetID < out[j].DatasetID })
	return out
}
