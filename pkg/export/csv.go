// Package export writes traced fibers as CSV tables.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"dtfiber/pkg/fiber"
)

// PointRow is one fiber vertex. Offset is the vertex position relative to
// the seed: negative along half 0, zero at the seed, positive along half 1.
type PointRow struct {
	RunID  string  `csv:"run_id"`
	Fiber  int     `csv:"fiber"`
	Offset int     `csv:"offset"`
	X      float64 `csv:"x"`
	Y      float64 `csv:"y"`
	Z      float64 `csv:"z"`
}

// SummaryRow describes one traced seed.
type SummaryRow struct {
	RunID   string  `csv:"run_id"`
	Fiber   int     `csv:"fiber"`
	SeedX   float64 `csv:"seed_x"`
	SeedY   float64 `csv:"seed_y"`
	SeedZ   float64 `csv:"seed_z"`
	Points  int     `csv:"points"`
	Length  float64 `csv:"length"`
	Steps0  int     `csv:"steps0"`
	Steps1  int     `csv:"steps1"`
	Stop0   string  `csv:"stop0"`
	Stop1   string  `csv:"stop1"`
	Nowhere string  `csv:"nowhere"`
}

// PointRows flattens the vertices of every produced fiber. Fibers are
// numbered by their position in fibers.
func PointRows(runID string, fibers []*fiber.Fiber) []PointRow {
	var rows []PointRow
	for i, f := range fibers {
		if f == nil || f.Empty() {
			continue
		}
		for j, p := range f.Points {
			rows = append(rows, PointRow{
				RunID:  runID,
				Fiber:  i,
				Offset: j - f.SeedIndex,
				X:      p.X,
				Y:      p.Y,
				Z:      p.Z,
			})
		}
	}
	return rows
}

// SummaryRows returns one row per fiber, including the ones that were not
// produced.
func SummaryRows(runID string, fibers []*fiber.Fiber) []SummaryRow {
	rows := make([]SummaryRow, 0, len(fibers))
	for i, f := range fibers {
		if f == nil {
			continue
		}
		row := SummaryRow{
			RunID:  runID,
			Fiber:  i,
			SeedX:  f.Seed.X,
			SeedY:  f.Seed.Y,
			SeedZ:  f.Seed.Z,
			Points: len(f.Points),
			Length: f.Length(),
			Steps0: f.Halves[0].NumSteps,
			Steps1: f.Halves[1].NumSteps,
			Stop0:  f.Halves[0].WhyStop.String(),
			Stop1:  f.Halves[1].WhyStop.String(),
		}
		if f.Empty() {
			row.Nowhere = f.WhyNowhere.String()
		}
		rows = append(rows, row)
	}
	return rows
}

// WritePoints writes the point table of fibers to w, with a header.
func WritePoints(w io.Writer, runID string, fibers []*fiber.Fiber) error {
	if err := gocsv.Marshal(PointRows(runID, fibers), w); err != nil {
		return fmt.Errorf("writing fiber points: %w", err)
	}
	return nil
}

// WriteSummary writes the summary table of fibers to w, with a header.
func WriteSummary(w io.Writer, runID string, fibers []*fiber.Fiber) error {
	if err := gocsv.Marshal(SummaryRows(runID, fibers), w); err != nil {
		return fmt.Errorf("writing fiber summary: %w", err)
	}
	return nil
}

// WritePointsFile writes the point table to path, creating its directory.
func WritePointsFile(path, runID string, fibers []*fiber.Fiber) error {
	return writeFile(path, func(w io.Writer) error {
		return WritePoints(w, runID, fibers)
	})
}

// WriteSummaryFile writes the summary table to path, creating its directory.
func WriteSummaryFile(path, runID string, fibers []*fiber.Fiber) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteSummary(w, runID, fibers)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
