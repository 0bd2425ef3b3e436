package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
)

// header returns the column names and the units row of a trajectory table.
func header() ([]string, []string) {
	names := []string{"time"}
	units := []string{bioreactor.TimeUnit}
	for _, v := range bioreactor.Variables() {
		names = append(names, v.Symbol)
		units = append(units, v.Unit)
	}
	return names, units
}

// WriteCSV writes one trajectory as time,X,S,P,V rows preceded by a header
// and a units row. The caller flushes w.
func WriteCSV(w *csv.Writer, tr *dynamo.Trajectory) error {
	names, units := header()
	if err := w.Write(names); err != nil {
		return err
	}
	if err := w.Write(units); err != nil {
		return err
	}

	row := make([]string, len(names))
	for i := 0; i < tr.Len(); i++ {
		row[0] = formatFloat(tr.Times[i])
		for j, val := range tr.States[i] {
			row[j+1] = formatFloat(val)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ReadCSV parses what WriteCSV produced.
func ReadCSV(r *csv.Reader) (*dynamo.Trajectory, error) {
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("missing header")
	}

	names, _ := header()
	tr := dynamo.NewTrajectory(len(records) - 2)
	for i, record := range records[2:] {
		if len(record) != len(names) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+3, len(names), len(record))
		}
		vals := make([]float64, len(record))
		for j, field := range record {
			if vals[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+3, names[j], err)
			}
		}
		tr.Append(vals[0], dynamo.State(vals[1:]))
	}
	return tr, nil
}

// WriteSweepCSV writes every scenario of a run into one table with a
// leading scenario column.
func WriteSweepCSV(out io.Writer, meta *RunMetadata, trajectories []*dynamo.Trajectory) error {
	w := csv.NewWriter(out)

	names, units := header()
	if err := w.Write(append([]string{"scenario"}, names...)); err != nil {
		return err
	}
	if err := w.Write(append([]string{""}, units...)); err != nil {
		return err
	}

	for i, tr := range trajectories {
		label := fmt.Sprintf("%d", i)
		if i < len(meta.Scenarios) {
			label = meta.Scenarios[i].Scenario.Label()
		}
		for k := 0; k < tr.Len(); k++ {
			row := []string{label, formatFloat(tr.Times[k])}
			for _, val := range tr.States[k] {
				row = append(row, formatFloat(val))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

type ExportScenario struct {
	ScenarioRecord
	Trajectory []bioreactor.Sample `json:"trajectory"`
}

type ExportData struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Method     string            `json:"method"`
	Parameters ParamsRecord      `json:"parameters"`
	Initial    bioreactor.Sample `json:"initial"`
	Grid       GridRecord        `json:"grid"`
	Units      map[string]string `json:"units"`
	Scenarios  []ExportScenario  `json:"scenarios"`
}

// WriteJSON writes a run with its samples as indented JSON.
func WriteJSON(out io.Writer, meta *RunMetadata, trajectories []*dynamo.Trajectory) error {
	data := ExportData{
		ID:         meta.ID,
		Name:       meta.Name,
		Method:     meta.Method,
		Parameters: meta.Params,
		Initial:    meta.Initial,
		Grid:       meta.Grid,
		Units:      map[string]string{"t": bioreactor.TimeUnit},
	}
	for _, v := range bioreactor.Variables() {
		data.Units[strings.ToLower(v.Symbol)] = v.Unit
	}

	for i, rec := range meta.Scenarios {
		sc := ExportScenario{ScenarioRecord: rec}
		if i < len(trajectories) {
			sc.Trajectory = bioreactor.Samples(trajectories[i])
		}
		data.Scenarios = append(data.Scenarios, sc)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
