package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
)

func testSeries() []Series {
	a := dynamo.NewTrajectory(3)
	b := dynamo.NewTrajectory(3)
	for i := 0; i < 3; i++ {
		t := float64(i) * 10
		a.Append(t, bioreactor.NewState(0.05+float64(i), 10-float64(i), 0.1*float64(i), 1+0.05*t))
		b.Append(t, bioreactor.NewState(0.05+0.5*float64(i), 10-0.5*float64(i), 0.05*float64(i), 1+0.02*t))
	}
	return []Series{{Label: "F=0.05", Trajectory: a}, {Label: "F=0.02", Trajectory: b}}
}

func TestChart(t *testing.T) {
	v := bioreactor.Variables()[bioreactor.IdxX]
	p, err := Chart(v, testSeries())
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	if p.Title.Text != "Cells (X)" {
		t.Errorf("unexpected title %q", p.Title.Text)
	}
	if p.Y.Label.Text != "X (g/L)" || p.X.Label.Text != "time (hr)" {
		t.Errorf("unexpected axis labels %q / %q", p.X.Label.Text, p.Y.Label.Text)
	}
}

func TestChartNoSeries(t *testing.T) {
	v := bioreactor.Variables()[0]
	if _, err := Chart(v, nil); !errors.Is(err, ErrNoSeries) {
		t.Errorf("expected ErrNoSeries, got %v", err)
	}
	if _, err := Chart(v, []Series{{Label: "empty", Trajectory: dynamo.NewTrajectory(0)}}); !errors.Is(err, ErrNoSeries) {
		t.Errorf("expected ErrNoSeries for empty trajectories, got %v", err)
	}
}

func TestSaveCharts(t *testing.T) {
	for _, format := range []string{"png", "svg"} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "charts")
			paths, err := SaveCharts(dir, format, testSeries())
			if err != nil {
				t.Fatalf("SaveCharts: %v", err)
			}
			if len(paths) != 4 {
				t.Fatalf("expected 4 files, got %d", len(paths))
			}
			for _, path := range paths {
				info, err := os.Stat(path)
				if err != nil {
					t.Fatalf("stat %s: %v", path, err)
				}
				if info.Size() == 0 {
					t.Errorf("%s is empty", path)
				}
			}
			if filepath.Base(paths[0]) != "x."+format {
				t.Errorf("unexpected file name %s", paths[0])
			}
		})
	}
}

func TestSaveChartsUnknownFormat(t *testing.T) {
	if _, err := SaveCharts(t.TempDir(), "gif", testSeries()); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}
