package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/hexwalk/internal/wire"
)

const (
	metadataFile  = "metadata.json"
	telemetryFile = "telemetry.csv"
)

var (
	ErrNoRun    = errors.New("storage: no such run")
	ErrBadRunID = errors.New("storage: invalid run id")
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Gait      string             `json:"gait"`
	Simulator string             `json:"simulator"`
	Timestamp time.Time          `json:"timestamp"`
	Dt        float64            `json:"dt"`
	Horizon   float64            `json:"horizon"`
	Steps     int                `json:"steps"`
	Reason    string             `json:"reason"`
	Motors    []string           `json:"motors"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes meta and the recorded samples to a fresh run directory and
// returns the run id. ID, Timestamp, Steps and Motors are filled in.
func (s *Store) Save(meta RunMetadata, rec *Recorder) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	now := time.Now()
	runID, dir, err := s.reserve(fmt.Sprintf("%s_%d", meta.Gait, now.Unix()))
	if err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = now
	meta.Steps = len(rec.Samples)
	meta.Motors = rec.Motors

	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeTelemetry(filepath.Join(dir, telemetryFile), rec); err != nil {
		return "", err
	}
	return runID, nil
}

// reserve creates the run directory, suffixing the id when a run with the
// same name already exists.
func (s *Store) reserve(base string) (string, string, error) {
	id := base
	for n := 2; ; n++ {
		dir, err := s.runDir(id)
		if err != nil {
			return "", "", err
		}
		err = os.Mkdir(dir, 0755)
		if err == nil {
			return id, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

// runDir resolves a run id to its directory. An id is a single path
// element, so nothing outside the base directory can be reached.
func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadRunID, runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

func header(motors []string, targets int) []string {
	h := []string{"time"}
	for _, m := range motors {
		h = append(h, "pos_"+m)
	}
	for _, m := range motors {
		h = append(h, "torque_"+m)
	}
	for i := 0; i < targets; i++ {
		h = append(h, fmt.Sprintf("cmd_%d", i))
	}
	return append(h, "tracker_x", "tracker_y", "tracker_z", "accel_x", "accel_y", "accel_z")
}

func writeTelemetry(path string, rec *Recorder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	targets := 0
	if len(rec.Samples) > 0 {
		targets = len(rec.Samples[0].Targets)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header(rec.Motors, targets)); err != nil {
		return err
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, smp := range rec.Samples {
		row := []string{ff(smp.Time)}
		for _, v := range smp.Pos {
			row = append(row, ff(v))
		}
		for _, v := range smp.Torque {
			row = append(row, ff(v))
		}
		for _, v := range smp.Targets {
			row = append(row, ff(v))
		}
		row = append(row,
			ff(smp.Tracker.X), ff(smp.Tracker.Y), ff(smp.Tracker.Z),
			ff(smp.Accel.X), ff(smp.Accel.Y), ff(smp.Accel.Z))
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// List returns every readable run, oldest first.
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

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadSamples reads a run's telemetry back into a Recorder.
func (s *Store) LoadSamples(runID string) (*Recorder, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, telemetryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	head, err := r.Read()
	if err == io.EOF {
		return &Recorder{}, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &Recorder{}
	var targets int
	for _, col := range head {
		switch {
		case strings.HasPrefix(col, "pos_"):
			rec.Motors = append(rec.Motors, strings.TrimPrefix(col, "pos_"))
		case strings.HasPrefix(col, "cmd_"):
			targets++
		}
	}
	n := len(rec.Motors)
	if want := len(header(rec.Motors, targets)); len(head) != want {
		return nil, fmt.Errorf("run %s: telemetry header has %d columns, want %d", runID, len(head), want)
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		vals := make([]float64, len(row))
		for i, cell := range row {
			if vals[i], err = strconv.ParseFloat(cell, 64); err != nil {
				return nil, fmt.Errorf("run %s line %d column %s: %w", runID, line, head[i], err)
			}
		}

		rest := vals[1:]
		smp := Sample{
			Time:    vals[0],
			Pos:     rest[:n:n],
			Torque:  rest[n : 2*n : 2*n],
			Targets: rest[2*n : 2*n+targets : 2*n+targets],
		}
		tail := rest[2*n+targets:]
		smp.Tracker = wire.Vec3{X: tail[0], Y: tail[1], Z: tail[2]}
		smp.Accel = wire.Vec3{X: tail[3], Y: tail[4], Z: tail[5]}
		rec.Samples = append(rec.Samples, smp)
	}
	return rec, nil
}

// Series returns the measured position of one motor over the run.
func (r *Recorder) Series(motor int) []float64 {
	out := make([]float64, 0, len(r.Samples))
	for _, smp := range r.Samples {
		if motor < len(smp.Pos) {
			out = append(out, smp.Pos[motor])
		}
	}
	return out
}

// MotorIndex finds a motor by name.
func (r *Recorder) MotorIndex(name string) (int, bool) {
	for i, m := range r.Motors {
		if m == name {
			return i, true
		}
	}
	return 0, false
}

type exportData struct {
	Meta    RunMetadata `json:"metadata"`
	Times   []float64   `json:"times"`
	Pos     [][]float64 `json:"positions"`
	Targets [][]float64 `json:"targets"`
	Tracker []wire.Vec3 `json:"tracker"`
}

// Export writes a run as a single JSON document.
func (s *Store) Export(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	rec, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}

	data := exportData{Meta: *meta}
	for _, smp := range rec.Samples {
		data.Times = append(data.Times, smp.Time)
		data.Pos = append(data.Pos, smp.Pos)
		data.Targets = append(data.Targets, smp.Targets)
		data.Tracker = append(data.Tracker, smp.Tracker)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
