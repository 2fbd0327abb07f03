package driver_test

import (
	"bytes"
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/hexwalk/internal/driver"
	"github.com/san-kum/hexwalk/internal/gait"
	"github.com/san-kum/hexwalk/internal/wire"
)

type countingMetric struct {
	resets, samples int
}

func (m *countingMetric) Name() string                        { return "samples" }
func (m *countingMetric) Observe(*driver.Snapshot, []float64) { m.samples++ }
func (m *countingMetric) Value() float64                      { return float64(m.samples) }

func (m *countingMetric) Reset() {
	m.resets++
	m.samples = 0
}

var _ = Describe("Config", func() {
	It("runs 1200 steps by default", func() {
		cfg := driver.DefaultConfig()
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.Steps()).To(Equal(1200))
	})

	DescribeTable("rejects",
		func(cfg driver.Config) {
			Expect(cfg.Validate()).To(MatchError(driver.ErrBadConfig))
		},
		Entry("zero dt", driver.Config{Dt: 0, Horizon: 60}),
		Entry("negative horizon", driver.Config{Dt: 0.05, Horizon: -1}),
		Entry("horizon below one step", driver.Config{Dt: 1, Horizon: 0.2}),
	)
})

var _ = Describe("Driver", func() {
	var (
		sim *fakeSim
		kf  *gait.Keyframes
		ctx context.Context
	)

	BeforeEach(func() {
		sim = newFakeSim(18, 6)
		var err error
		kf, err = gait.NewKeyframes(gait.Tripod, 1)
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	Context("when the horizon elapses", func() {
		It("writes every actuator once per step", func() {
			d := driver.New(sim, kf, driver.DefaultConfig())
			res, err := d.Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(driver.Completed))
			Expect(res.Steps).To(Equal(1200))
			Expect(sim.steps).To(Equal(1200))
			for i := 0; i < 18; i++ {
				Expect(sim.writes[i]).To(HaveLen(1200), "actuator %d", i)
			}
		})

		It("writes the pattern's targets at t = i*dt", func() {
			d := driver.New(sim, kf, driver.DefaultConfig())
			_, err := d.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			for _, i := range []int{0, 7, 20, 613, 1199} {
				want := kf.Targets(float64(i) * 0.05)
				for a := range want {
					Expect(sim.writes[a][i]).To(Equal(want[a]), "step %d actuator %d", i, a)
				}
			}
		})

		It("stops then disconnects exactly once", func() {
			d := driver.New(sim, kf, driver.DefaultConfig())
			_, err := d.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(sim.ops).To(Equal([]string{"start", "stop", "close"}))
			Expect(d.Phase()).To(Equal(driver.Disconnected))
		})

		It("feeds observers and metrics", func() {
			var times []float64
			m := &countingMetric{}

			d := driver.New(sim, kf, driver.DefaultConfig())
			d.AddMetric(m)
			d.AddObserver(driver.ObserverFunc(func(s *driver.Snapshot, cmd []float64) {
				times = append(times, s.Time)
				Expect(cmd).To(HaveLen(18))
				Expect(s.Motors).To(HaveLen(18))
				Expect(s.Forces).To(HaveLen(6))
			}))

			res, err := d.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(times).To(HaveLen(1200))
			Expect(times[0]).To(Equal(0.0))
			last := 1199
			Expect(times[last]).To(Equal(float64(last) * 0.05))
			Expect(m.resets).To(Equal(1))
			Expect(res.Metrics).To(HaveKeyWithValue("samples", 1200.0))
		})

		It("can only run once", func() {
			d := driver.New(sim, kf, driver.DefaultConfig())
			_, err := d.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = d.Run(ctx)
			Expect(err).To(MatchError(driver.ErrNotConnected))
			Expect(sim.closes).To(Equal(1))
		})
	})

	Context("when ctx is cancelled mid-walk", func() {
		It("exits cleanly after shutting the simulator down", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			sim.onStep = func(step int) {
				if step == 10 {
					cancel()
				}
			}

			d := driver.New(sim, kf, driver.DefaultConfig())
			res, err := d.Run(cctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(driver.Cancelled))
			Expect(res.Steps).To(Equal(10))
			Expect(sim.stops).To(Equal(1))
			Expect(sim.closes).To(Equal(1))
		})

		It("exits before the first step when already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			res, err := driver.New(sim, kf, driver.DefaultConfig()).Run(cctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(driver.Cancelled))
			Expect(res.Steps).To(BeZero())
			Expect(sim.ops).To(Equal([]string{"start", "stop", "close"}))
		})
	})

	Context("when the simulator fails", func() {
		It("reports the step and still shuts down", func() {
			sim.failOp, sim.failAt = "write", 5

			res, err := driver.New(sim, kf, driver.DefaultConfig()).Run(ctx)
			Expect(err).To(MatchError(errInjected))

			var se *driver.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(Equal(4))
			Expect(se.Op).To(Equal("write motor 0"))
			Expect(res.Reason).To(Equal(driver.Failed))
			Expect(res.Steps).To(Equal(4))
			Expect(sim.ops).To(Equal([]string{"start", "stop", "close"}))
		})

		It("disconnects without stopping when start fails", func() {
			sim.failOp = "start"

			d := driver.New(sim, kf, driver.DefaultConfig())
			_, err := d.Run(ctx)
			Expect(err).To(MatchError(errInjected))
			Expect(sim.ops).To(Equal([]string{"start", "close"}))
			Expect(d.Phase()).To(Equal(driver.Disconnected))
		})

		It("still disconnects when stop fails", func() {
			sim.failOp = "stop"

			res, err := driver.New(sim, kf, driver.DefaultConfig()).Run(ctx)
			Expect(err).To(MatchError(errInjected))
			Expect(res.Reason).To(Equal(driver.Failed))
			Expect(res.Steps).To(Equal(1200))
			Expect(sim.closes).To(Equal(1))

			var se *driver.ShutdownError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Op).To(Equal("stop"))
			Expect(err.Error()).To(Equal("shutdown: stop: injected failure"))
		})

		It("refuses a simulator with too few motors", func() {
			sim = newFakeSim(12, 6)

			_, err := driver.New(sim, kf, driver.DefaultConfig()).Run(ctx)
			Expect(err).To(MatchError(driver.ErrTooFewMotors))
			Expect(sim.ops).To(Equal([]string{"close"}))
		})

		It("only disconnects when the config is invalid", func() {
			_, err := driver.New(sim, kf, driver.Config{Dt: 0, Horizon: 60}).Run(ctx)
			Expect(err).To(MatchError(driver.ErrBadConfig))
			Expect(sim.ops).To(Equal([]string{"close"}))
		})
	})
})

var _ = Describe("Reporting", func() {
	It("describes the registered hardware", func() {
		var buf bytes.Buffer
		Expect(driver.DescribeInitial(&buf, newFakeSim(2, 1))).To(Succeed())

		Expect(buf.String()).To(Equal(strings.Join([]string{
			"Registered motors: 2",
			"[0] m0 minPos=-1 maxPos=1 TorqueMax=2",
			"[1] m1 minPos=-1 maxPos=1 TorqueMax=2",
			"Registered force sensors: 1",
			"[0] f0",
			"",
		}, "\n")))
	})

	It("prints one block per step", func() {
		var buf bytes.Buffer
		r := driver.NewTextReporter(&buf)
		r.OnStep(&driver.Snapshot{
			Time:    0.15,
			Motors:  []driver.MotorState{{Name: "leg0_knee", Pos: 0.2, Torque: -1.5}},
			Forces:  []driver.ForceState{{Name: "foot0_force", Force: 3, Torque: 0.25}},
			Tracker: wire.Vec3{X: 1.25, Z: 0.5},
		}, nil)

		Expect(r.Err()).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal(strings.Join([]string{
			"Simulation step t=0.15",
			"   #[0] leg0_knee pos=0.2 torque=-1.5",
			"   *[0] foot0_force force=3 torque=0.25",
			"   -    Accelerometer X=0 Y=0 Z=0",
			"   -    Position tracker X=1.25 Y=0 Z=0.5",
			"",
		}, "\n")))
	})
})
