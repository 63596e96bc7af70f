package classifier

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// musicKeywords statically partitions the taxonomy: any class whose display
// name contains one of these substrings is counted as music-related. The
// partition is computed once at load time; the hot path only looks up the
// precomputed index set.
var musicKeywords = []string{
	"music", "song", "singing", "choir", "beat",
	"drum", "guitar", "piano", "violin", "flute",
	"instrument", "orchestra", "melody", "rhythm",
	"pop music", "rock music", "hip hop", "jazz",
	"electronic music", "background music", "soundtrack",
}

// LoadClassMap reads the classifier's class-name table (CSV with a
// display_name column) and returns the class names in index order.
func LoadClassMap(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing class map: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("class map %s is empty", path)
	}

	nameCol := -1
	for i, col := range records[0] {
		if strings.TrimSpace(col) == "display_name" {
			nameCol = i
			break
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("class map %s has no display_name column", path)
	}

	names := make([]string, 0, len(records)-1)
	for _, row := range records[1:] {
		if nameCol >= len(row) {
			return nil, fmt.Errorf("class map %s has a short row", path)
		}
		names = append(names, row[nameCol])
	}
	return names, nil
}

// BuildMusicIndex returns the indices of all music-related classes.
func BuildMusicIndex(classNames []string) []int {
	var ids []int
	for i, name := range classNames {
		lower := strings.ToLower(name)
		for _, kw := range musicKeywords {
			if strings.Contains(lower, kw) {
				ids = append(ids, i)
				break
			}
		}
	}
	return ids
}
