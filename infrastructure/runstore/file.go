package runstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"hospitalsync/internal/domain"
	"hospitalsync/utils"
)

// FileBackend keeps the run state in one JSON document
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the JSON document location
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads the document. A missing file is an empty state.
func (b *FileBackend) Load(ctx context.Context) (*domain.RunState, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewRunState(), nil
		}
		return nil, domain.MetadataCorruptError("read "+b.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.MetadataCorruptError("read "+b.path, errors.New("empty file"))
	}

	var state domain.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, domain.MetadataCorruptError("decode "+b.path, err)
	}
	if state.Version > domain.RunStateVersion {
		return nil, domain.MetadataCorruptError("decode "+b.path,
			fmt.Errorf("unsupported version %d", state.Version))
	}

	if state.Records == nil {
		state.Records = make(map[string]domain.RunRecord)
	}
	for id, rec := range state.Records {
		if rec.DatasetID == "" {
			rec.DatasetID = id
			state.Records[id] = rec
		}
	}
	state.Version = domain.RunStateVersion

	return &state, nil
}

// Save writes the document atomically
func (b *FileBackend) Save(ctx context.Context, state *domain.RunState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run state: %w", err)
	}
	data = append(data, '\n')

	if _, err := utils.WriteFileAtomic(b.path, bytes.NewReader(data), 0o644); err != nil {
		return domain.IOError("save run state", "", err)
	}
	return nil
}
