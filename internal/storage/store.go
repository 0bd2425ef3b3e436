package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/bioreact/internal/analysis"
	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
	"github.com/san-kum/bioreact/internal/sim"
)

const metadataFile = "metadata.json"

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

// Sweep is everything needed to reproduce and inspect a finished sweep.
type Sweep struct {
	Name    string
	Method  string
	Params  bioreactor.Parameters
	Initial dynamo.State
	Config  sim.Config
	Results []sim.RunResult
}

type ParamsRecord struct {
	MuMax float64 `json:"mumax"`
	Ks    float64 `json:"ks"`
	Yxs   float64 `json:"yxs"`
	Ypx   float64 `json:"ypx"`
}

type GridRecord struct {
	T0     float64 `json:"t0"`
	TEnd   float64 `json:"t_end"`
	Points int     `json:"points"`
	RelTol float64 `json:"rtol"`
	AbsTol float64 `json:"atol"`
	// MaxSteps is the cap the solver ran with after defaults were applied.
	MaxSteps int `json:"max_steps"`
}

type ScenarioRecord struct {
	Index     int                 `json:"index"`
	Scenario  bioreactor.Scenario `json:"scenario"`
	Status    sim.Status          `json:"status"`
	Error     string              `json:"error,omitempty"`
	File      string              `json:"file"`
	Samples   int                 `json:"samples"`
	Steps     int                 `json:"steps"`
	Rejected  int                 `json:"rejected"`
	ElapsedMs float64             `json:"elapsed_ms"`
	Summary   analysis.Summary    `json:"summary"`
}

type RunMetadata struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Method    string            `json:"method"`
	Params    ParamsRecord      `json:"parameters"`
	Initial   bioreactor.Sample `json:"initial"`
	Grid      GridRecord        `json:"grid"`
	Scenarios []ScenarioRecord  `json:"scenarios"`
}

// Failed counts scenarios that did not reach the end of the horizon.
func (m *RunMetadata) Failed() int {
	n := 0
	for _, sc := range m.Scenarios {
		if sc.Status != sim.StatusSuccess {
			n++
		}
	}
	return n
}

// Records summarizes every scenario result of the sweep.
func (sw Sweep) Records() []ScenarioRecord {
	records := make([]ScenarioRecord, 0, len(sw.Results))
	for i, r := range sw.Results {
		rec := ScenarioRecord{
			Index:     i,
			Scenario:  r.Scenario,
			Status:    r.Status,
			File:      scenarioFile(i),
			Samples:   r.Trajectory.Len(),
			Steps:     r.Stats.Steps,
			Rejected:  r.Stats.Rejected,
			ElapsedMs: float64(r.Elapsed.Microseconds()) / 1000,
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		if r.Trajectory.Len() > 0 {
			rec.Summary = analysis.Summarize(r.Trajectory, r.Scenario, sw.Params)
		}
		records = append(records, rec)
	}
	return records
}

// Save writes the sweep under a new run directory and returns its ID.
func (s *Store) Save(sw Sweep) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%s", slug(sw.Name), now.Format("20060102-150405.000000"))
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	solver := sw.Config.Solver.WithDefaults()
	meta := RunMetadata{
		ID:        runID,
		Name:      sw.Name,
		Timestamp: now,
		Method:    sw.Method,
		Params: ParamsRecord{
			MuMax: sw.Params.MuMax,
			Ks:    sw.Params.Ks,
			Yxs:   sw.Params.Yxs,
			Ypx:   sw.Params.Ypx,
		},
		Grid: GridRecord{
			T0:       sw.Config.T0,
			TEnd:     sw.Config.TEnd,
			Points:   len(sw.Config.Grid()),
			RelTol:   solver.RelTol,
			AbsTol:   solver.AbsTol,
			MaxSteps: solver.MaxSteps,
		},
	}
	if len(sw.Initial) == 4 {
		meta.Initial = bioreactor.Sample{
			T: sw.Config.T0,
			X: sw.Initial[bioreactor.IdxX],
			S: sw.Initial[bioreactor.IdxS],
			P: sw.Initial[bioreactor.IdxP],
			V: sw.Initial[bioreactor.IdxV],
		}
	}

	meta.Scenarios = sw.Records()
	for i, r := range sw.Results {
		if err := writeTrajectory(filepath.Join(runDir, scenarioFile(i)), r.Trajectory); err != nil {
			os.RemoveAll(runDir)
			return "", fmt.Errorf("scenario %d: %w", i, err)
		}
	}

	if err := writeMetadata(filepath.Join(runDir, metadataFile), &meta); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	return runID, nil
}

func writeMetadata(path string, meta *RunMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func writeTrajectory(path string, tr *dynamo.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := WriteCSV(w, tr); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable run in the store, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", runID, err)
	}

	return &meta, nil
}

// LoadTrajectory reads the samples of scenario index of a run.
func (s *Store) LoadTrajectory(runID string, index int) (*dynamo.Trajectory, error) {
	path := filepath.Join(s.baseDir, runID, scenarioFile(index))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s scenario %d", ErrRunNotFound, runID, index)
		}
		return nil, err
	}
	defer file.Close()

	tr, err := ReadCSV(csv.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

// LoadAll returns the metadata of a run together with every scenario
// trajectory, in scenario order.
func (s *Store) LoadAll(runID string) (*RunMetadata, []*dynamo.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	trajectories := make([]*dynamo.Trajectory, len(meta.Scenarios))
	for i := range meta.Scenarios {
		if trajectories[i], err = s.LoadTrajectory(runID, i); err != nil {
			return nil, nil, err
		}
	}
	return meta, trajectories, nil
}

// Latest returns the ID of the most recent run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrRunNotFound
	}
	return runs[0].ID, nil
}

func scenarioFile(index int) string {
	return fmt.Sprintf("scenario_%d.csv", index)
}

func slug(name string) string {
	if name == "" {
		return "run"
	}
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
