package beat

import (
	"fmt"
	"os"

	"github.com/ashmetov/conveyor/internal/codec"
)

// LoadFile читает расписание из JSON-файла: массив Entry.
// Каждая запись валидируется, имена должны быть уникальны.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var entries []Entry
	if err := codec.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse schedule file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(entries))
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, err
		}
		if seen[entries[i].Name] {
			return nil, fmt.Errorf("%w: duplicate entry name %q", ErrBadEntry, entries[i].Name)
		}
		seen[entries[i].Name] = true
	}

	return entries, nil
}
