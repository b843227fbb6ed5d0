package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// csvLoader reads per-run neural recordings exported to CSV, one sample
// per row with one column per channel.
type csvLoader struct {
	file    string
	fs      float64
	channel int
}

func (l *csvLoader) Load(runPath string, _ string) ([]float64, float64, error) {
	path := filepath.Join(runPath, l.file)

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var raw []float64
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}
		row++
		if l.channel >= len(record) {
			return nil, 0, fmt.Errorf("%s row %d: channel %d out of range, file has %d columns", path, row, l.channel, len(record))
		}

		v, err := strconv.ParseFloat(record[l.channel], 64)
		if err != nil {
			// A non-numeric first row is a header.
			if row == 1 {
				continue
			}
			return nil, 0, fmt.Errorf("%s row %d: bad sample: %w", path, row, err)
		}
		raw = append(raw, v)
	}

	if len(raw) == 0 {
		return nil, 0, fmt.Errorf("%s holds no samples", path)
	}
	return raw, l.fs, nil
}
