package main

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/hexwalk/internal/simserver"
	"github.com/san-kum/hexwalk/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mockSimulator(t *testing.T) (*simserver.Server, string) {
	t.Helper()
	srv := simserver.New(simserver.DefaultConfig())
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv, strconv.Itoa(srv.Addr().(*net.TCPAddr).Port)
}

func TestWrongArgCount(t *testing.T) {
	out, err := execute(t, "127.0.0.1")
	require.Error(t, err)
	assert.Contains(t, out, "Usage:")
}

func TestBadPort(t *testing.T) {
	_, err := execute(t, "127.0.0.1", "http")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestWalkAgainstMock(t *testing.T) {
	srv, port := mockSimulator(t)

	out, err := execute(t, "127.0.0.1", port, "--time", "1", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Registered motors: 18")
	assert.Contains(t, out, "[17] leg5_ankle")
	assert.Contains(t, out, "Registered force sensors: 6")
	assert.Contains(t, out, "Starting simulation")
	assert.Equal(t, 20, strings.Count(out, "Simulation step t="))
	assert.Contains(t, out, "   #[0] leg0_shoulder pos=")
	assert.Contains(t, out, "Stopping simulation")

	st := srv.Stats()
	assert.Equal(t, 20, st.Steps)
	assert.Equal(t, 1, st.Stops)
	for i, n := range st.Writes {
		assert.Equal(t, 20, n, "motor %d", i)
	}
	assert.Eventually(t, func() bool { return srv.Stats().Goodbyes == 1 }, time.Second, 10*time.Millisecond)
}

func TestWalkRecordsRun(t *testing.T) {
	_, port := mockSimulator(t)
	dir := t.TempDir()

	out, err := execute(t, "127.0.0.1", port, "--quiet", "--time", "0.5", "--preset", "quarter",
		"--record", "--data", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.NotContains(t, out, "Simulation step")
	assert.Contains(t, out, "saved run quarter_")

	runs, err := storage.New(dir).List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 10, runs[0].Steps)
	assert.Equal(t, "completed", runs[0].Reason)

	out, err = execute(t, "list", "--data", dir)
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID)

	out, err = execute(t, "plot", runs[0].ID, "--data", dir, "--joint", "leg2_knee")
	require.NoError(t, err)
	assert.Contains(t, out, "leg2_knee position")
}

func TestRunIDOutsideDataDir(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "plot", "../x", "--data", dir)
	assert.ErrorIs(t, err, storage.ErrBadRunID)

	_, err = execute(t, "export", "../x", "--data", dir)
	assert.ErrorIs(t, err, storage.ErrBadRunID)
}

func TestRateRejectedForOscillator(t *testing.T) {
	srv, port := mockSimulator(t)

	_, err := execute(t, "127.0.0.1", port, "--preset", "wave", "--rate", "2", "--log-level", "panic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only applies to keyframe gaits")
	assert.Zero(t, srv.Stats().Starts)
}

func TestWalkSimulatorDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
	l.Close()

	_, err = execute(t, "127.0.0.1", port, "--timeout", "500ms", "--log-level", "panic")
	require.Error(t, err)
}

func TestPresetsAndFrames(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	for _, name := range []string{"tripod", "quarter", "wave"} {
		assert.Contains(t, out, name)
	}

	out, err = execute(t, "frames", "tripod")
	require.NoError(t, err)
	assert.Contains(t, out, "4 frames at 1 per time unit")
	assert.Contains(t, out, "frame 3")

	out, err = execute(t, "frames", "wave")
	require.NoError(t, err)
	assert.Contains(t, out, "oscillator")

	_, err = execute(t, "frames", "gallop")
	require.Error(t, err)
}

func TestPreview(t *testing.T) {
	out, err := execute(t, "preview", "tripod", "--joint", "leg1_shoulder", "--samples", "40")
	require.NoError(t, err)
	assert.Contains(t, out, "tripod leg1_shoulder over one cycle")

	_, err = execute(t, "preview", "tripod", "--joint", "leg9_knee")
	require.Error(t, err)

	_, err = execute(t, "preview", "tripod", "--joint", "elbow")
	require.Error(t, err)
}

func TestParseJoint(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"leg0_shoulder", 0},
		{"leg0_ankle", 2},
		{"leg3_knee", 10},
		{"leg5_ankle", 17},
	}
	for _, tt := range tests {
		got, err := parseJoint(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
