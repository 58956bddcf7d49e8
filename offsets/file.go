package offsets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type fileCheckpointData struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// FileCheckpoint keeps offsets in a JSON file written with an atomic rename.
type FileCheckpoint struct {
	path string
}

func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

// Load reads the checkpoint. A missing file yields an empty map.
func (c *FileCheckpoint) Load(ctx context.Context) (map[string]Entry, error) {
	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", c.path, err)
	}

	var data fileCheckpointData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", c.path, err)
	}
	if data.Entries == nil {
		data.Entries = map[string]Entry{}
	}
	return data.Entries, nil
}

func (c *FileCheckpoint) Save(ctx context.Context, entries map[string]Entry) error {
	raw, err := json.MarshalIndent(fileCheckpointData{Version: 1, Entries: entries}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *FileCheckpoint) Close() error { return nil }
