package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/hexwalk/internal/driver"
	"github.com/san-kum/hexwalk/internal/wire"
)

func recorded(steps int) *Recorder {
	rec := NewRecorder()
	for i := 0; i < steps; i++ {
		t := float64(i) * 0.05
		rec.OnStep(&driver.Snapshot{
			Step: i,
			Time: t,
			Motors: []driver.MotorState{
				{Name: "leg0_shoulder", Pos: t, Torque: -t},
				{Name: "leg0_knee", Pos: 2 * t, Torque: 0.5},
			},
			Tracker: wire.Vec3{X: t / 10},
			Accel:   wire.Vec3{Z: -9.81},
		}, []float64{0.6, -0.2})
	}
	return rec
}

func TestRecorderCopiesSnapshot(t *testing.T) {
	rec := NewRecorder()
	snap := &driver.Snapshot{Motors: []driver.MotorState{{Name: "m", Pos: 1}}}
	cmd := []float64{3}

	rec.OnStep(snap, cmd)
	snap.Motors[0].Pos = 2
	cmd[0] = 4

	if rec.Samples[0].Pos[0] != 1 || rec.Samples[0].Targets[0] != 3 {
		t.Errorf("recorder aliases driver buffers: %+v", rec.Samples[0])
	}
	if len(rec.Motors) != 1 || rec.Motors[0] != "m" {
		t.Errorf("expected motor names, got %v", rec.Motors)
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())

	runID, err := st.Save(RunMetadata{
		Gait:      "tripod",
		Simulator: "127.0.0.1:19997",
		Dt:        0.05,
		Horizon:   0.25,
		Reason:    "completed",
		Metrics:   map[string]float64{"peak_torque": 1.5},
	}, recorded(5))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.ID != runID {
		t.Errorf("expected id %s, got %s", runID, meta.ID)
	}
	if meta.Gait != "tripod" || meta.Steps != 5 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["peak_torque"] != 1.5 {
		t.Errorf("expected peak torque 1.5, got %f", meta.Metrics["peak_torque"])
	}
	if meta.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}

	rec, err := st.LoadSamples(runID)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}
	if len(rec.Samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(rec.Samples))
	}
	if len(rec.Motors) != 2 || rec.Motors[1] != "leg0_knee" {
		t.Errorf("unexpected motors %v", rec.Motors)
	}

	last := rec.Samples[4]
	if last.Time != 0.2 || last.Pos[1] != 0.4 || last.Torque[0] != -0.2 {
		t.Errorf("unexpected last sample %+v", last)
	}
	if len(last.Targets) != 2 || last.Targets[0] != 0.6 {
		t.Errorf("unexpected targets %v", last.Targets)
	}
	if last.Tracker.X != 0.02 || last.Accel.Z != -9.81 {
		t.Errorf("unexpected vectors %+v %+v", last.Tracker, last.Accel)
	}

	if got := rec.Series(0); len(got) != 5 || got[4] != 0.2 {
		t.Errorf("unexpected series %v", got)
	}
	if i, ok := rec.MotorIndex("leg0_knee"); !ok || i != 1 {
		t.Errorf("expected knee at 1, got %d %v", i, ok)
	}
}

func TestSaveSameSecond(t *testing.T) {
	st := New(t.TempDir())

	a, err := st.Save(RunMetadata{Gait: "wave"}, recorded(1))
	if err != nil {
		t.Fatal(err)
	}
	b, err := st.Save(RunMetadata{Gait: "wave"}, recorded(1))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("expected distinct run ids, got %s twice", a)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty list, got %v %v", runs, err)
	}

	for _, g := range []string{"tripod", "wave"} {
		if _, err := st.Save(RunMetadata{Gait: g}, recorded(2)); err != nil {
			t.Fatal(err)
		}
	}
	// stray directories are skipped
	if err := os.Mkdir(filepath.Join(dir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Gait != "tripod" {
		t.Errorf("expected oldest first, got %s", runs[0].Gait)
	}
}

func TestMissingRun(t *testing.T) {
	st := New(t.TempDir())

	if _, err := st.Load("ghost"); !errors.Is(err, ErrNoRun) {
		t.Errorf("expected ErrNoRun, got %v", err)
	}
	if _, err := st.LoadSamples("ghost"); !errors.Is(err, ErrNoRun) {
		t.Errorf("expected ErrNoRun, got %v", err)
	}
}

func TestRunIDStaysInsideStore(t *testing.T) {
	root := t.TempDir()
	outside := New(root)
	if _, err := outside.Save(RunMetadata{Gait: "tripod"}, recorded(2)); err != nil {
		t.Fatal(err)
	}
	runs, err := outside.List()
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run, got %v (%v)", runs, err)
	}

	st := New(filepath.Join(root, "data"))
	for _, id := range []string{"", ".", "..", "../" + runs[0].ID, "a/b", `a\b`} {
		if _, err := st.Load(id); !errors.Is(err, ErrBadRunID) {
			t.Errorf("Load(%q): expected ErrBadRunID, got %v", id, err)
		}
		if _, err := st.LoadSamples(id); !errors.Is(err, ErrBadRunID) {
			t.Errorf("LoadSamples(%q): expected ErrBadRunID, got %v", id, err)
		}
	}
	if _, err := st.Save(RunMetadata{Gait: "../escape"}, recorded(1)); !errors.Is(err, ErrBadRunID) {
		t.Errorf("expected ErrBadRunID for a gait name with a separator, got %v", err)
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{Gait: "quarter"}, recorded(3))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.Export(runID, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var got struct {
		Metadata  RunMetadata `json:"metadata"`
		Times     []float64   `json:"times"`
		Positions [][]float64 `json:"positions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("export is not json: %v", err)
	}
	if got.Metadata.Gait != "quarter" || len(got.Times) != 3 || len(got.Positions[2]) != 2 {
		t.Errorf("unexpected export %+v", got)
	}
}
