package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/edirooss/listmux/internal/wire"
)

// SaveSnapshot writes every list the manager holds to path as
// {list_id: {add_map, removed_map, acquired_map}}.
func SaveSnapshot(path string, m *Manager) error {
	data := make(map[string]*wire.ListState)
	m.Each(func(listID string, l *crdt.ShoppingList) {
		data[listID] = wire.FromList(l)
	})

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores lists from path into the manager. A missing file is
// an empty snapshot.
func LoadSnapshot(path string, m *Manager) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	data := make(map[string]*wire.ListState)
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	for listID, state := range data {
		m.Replace(listID, state.ToList())
	}
	return nil
}
