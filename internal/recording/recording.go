// Package recording loads raw acceleration recordings from CSV files.
package recording

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/motorsense/internal/model"
)

// Recording is one named stream of samples. Label is empty during live inference.
type Recording struct {
	Name    string
	Label   string
	Samples []model.Sample
}

// ErrMissingColumn is returned when a CSV header lacks an axis column.
var ErrMissingColumn = errors.New("missing axis column")

// Accepted header names per axis.
var axisAliases = [3][]string{
	{"ax", "accel_x", "x"},
	{"ay", "accel_y", "y"},
	{"az", "accel_z", "z"},
}

// LoadCSV reads a recording file. The recording is named after the file.
func LoadCSV(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	samples, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Recording{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Samples: samples,
	}, nil
}

// ReadCSV parses samples from CSV with a header row. Columns other than the
// three axes are ignored.
func ReadCSV(r io.Reader) ([]model.Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := axisColumns(header)
	if err != nil {
		return nil, err
	}

	var samples []model.Sample
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		var values [3]float64
		for axis, col := range cols {
			if col >= len(row) {
				return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", line, col+1, len(row))
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[col], err)
			}
			values[axis] = v
		}
		samples = append(samples, model.Sample{AX: values[0], AY: values[1], AZ: values[2]})
	}

	return samples, nil
}

func axisColumns(header []string) ([3]int, error) {
	cols := [3]int{-1, -1, -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for axis, aliases := range axisAliases {
			if cols[axis] != -1 {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					cols[axis] = i
				}
			}
		}
	}
	for axis, col := range cols {
		if col == -1 {
			return cols, fmt.Errorf("%w: %s", ErrMissingColumn, axisAliases[axis][0])
		}
	}
	return cols, nil
}

// LoadDataset reads root/<label>/*.csv. Recordings come back sorted by
// label, then name.
func LoadDataset(root string) ([]*Recording, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	var recordings []*Recording
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		label := entry.Name()

		files, err := filepath.Glob(filepath.Join(root, label, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", label, err)
		}
		for _, file := range files {
			rec, err := LoadCSV(file)
			if err != nil {
				return nil, err
			}
			rec.Label = label
			recordings = append(recordings, rec)
		}
	}

	sort.SliceStable(recordings, func(i, j int) bool {
		if recordings[i].Label != recordings[j].Label {
			return recordings[i].Label < recordings[j].Label
		}
		return recordings[i].Name < recordings[j].Name
	})
	return recordings, nil
}
