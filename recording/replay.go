package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReplayVersion is incremented when the format changes.
const ReplayVersion = 1

// Replay is the on-disk form of one recorded run.
type Replay struct {
	Version    int         `json:"version"`
	RunID      string      `json:"run_id"`
	Session    string      `json:"session"`
	Epoch      int         `json:"epoch"`
	Generation int         `json:"generation"`
	Map        string      `json:"map"`
	Snapshots  []*Snapshot `json:"snapshots"`
}

// NewReplay captures the buffer's current timeline.
func NewReplay(b *Buffer) *Replay {
	return &Replay{Version: ReplayVersion, Snapshots: b.Snapshots()}
}

// Buffer loads the replay's snapshots into a fresh buffer.
func (r *Replay) Buffer() *Buffer {
	b := NewBuffer()
	b.snapshots = append(b.snapshots, r.Snapshots...)
	return b
}

// SaveReplay writes r to dir and returns the file path.
func SaveReplay(r *Replay, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create replay dir: %w", err)
	}

	name := fmt.Sprintf("replay_%s_e%d_g%d.json", r.Session, r.Epoch, r.Generation)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write replay: %w", err)
	}
	return path, nil
}

// LoadReplay reads a replay from disk.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}

	var r Replay
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal replay: %w", err)
	}
	if r.Version != ReplayVersion {
		return nil, fmt.Errorf("replay version %d, want %d", r.Version, ReplayVersion)
	}
	return &r, nil
}
