package sim

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
	"github.com/san-kum/bioreact/internal/integrators"
)

var _ = Describe("Sweep", func() {
	var (
		s       *Simulator
		cfg     Config
		initial dynamo.State
		fast    = bioreactor.Scenario{Name: "fast", F: 0.05, Sf: 10}
		slow    = bioreactor.Scenario{Name: "slow", F: 0.02, Sf: 10}
	)

	BeforeEach(func() {
		model, err := bioreactor.NewModel(bioreactor.Parameters{MuMax: 0.2, Ks: 1.0, Yxs: 0.5, Ypx: 0.2})
		Expect(err).NotTo(HaveOccurred())

		log, _ := test.NewNullLogger()
		s = New(model, integrators.NewRK45(), log)
		cfg = DefaultConfig()
		initial = bioreactor.NewState(0.05, 10, 0, 1)
	})

	It("produces one trajectory per scenario over the whole horizon", func() {
		results, err := s.Sweep(context.Background(), initial, []bioreactor.Scenario{fast, slow}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))

		for _, res := range results {
			Expect(res.Status).To(Equal(StatusSuccess))
			tr := res.Trajectory
			Expect(tr.Len()).To(Equal(results[0].Trajectory.Len()))
			Expect(tr.Times[0]).To(Equal(0.0))
			Expect(tr.Times[tr.Len()-1]).To(Equal(30.0))
			Expect(tr.States[0]).To(Equal(initial))

			x := tr.Column(bioreactor.IdxX)
			for i := 1; i < len(x); i++ {
				Expect(x[i]).To(BeNumerically(">=", x[i-1]), "X decreased at t=%v", tr.Times[i])
			}

			for i, tm := range tr.Times {
				Expect(tr.States[i][bioreactor.IdxV]).To(BeNumerically("~", 1+res.Scenario.F*tm, 1e-9))
			}
		}
	})

	It("matches each scenario run on its own", func() {
		results, err := s.Sweep(context.Background(), initial, []bioreactor.Scenario{fast, slow}, cfg)
		Expect(err).NotTo(HaveOccurred())

		for i, sc := range []bioreactor.Scenario{fast, slow} {
			alone, err := s.Run(context.Background(), initial, sc, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[i].Trajectory).To(Equal(alone.Trajectory))
			Expect(results[i].Stats).To(Equal(alone.Stats))
		}
	})

	It("is deterministic regardless of worker count", func() {
		scenarios := []bioreactor.Scenario{fast, slow, {F: 0.1, Sf: 5}, {F: 0, Sf: 0}}

		cfg.Workers = 1
		serial, err := s.Sweep(context.Background(), initial, scenarios, cfg)
		Expect(err).NotTo(HaveOccurred())

		cfg.Workers = 4
		parallel, err := s.Sweep(context.Background(), initial, scenarios, cfg)
		Expect(err).NotTo(HaveOccurred())

		for i := range scenarios {
			Expect(parallel[i].Trajectory).To(Equal(serial[i].Trajectory))
		}
	})

	It("does not modify the caller's initial state", func() {
		before := initial.Clone()
		_, err := s.Sweep(context.Background(), initial, []bioreactor.Scenario{fast}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(initial).To(Equal(before))
	})

	Context("in a closed vessel", func() {
		It("converts substrate to biomass at the yield", func() {
			cfg.Solver.RelTol = 1e-6
			res, err := s.Run(context.Background(), initial, bioreactor.Scenario{F: 0, Sf: 10}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.OK()).To(BeTrue())

			params := s.Model().Params()
			for i := range res.Trajectory.Times {
				x := res.Trajectory.States[i]
				produced := x[bioreactor.IdxX] - initial[bioreactor.IdxX]
				consumed := initial[bioreactor.IdxS] - x[bioreactor.IdxS]
				Expect(consumed).To(BeNumerically("~", produced/params.Yxs, 1e-9))
				Expect(x[bioreactor.IdxV]).To(Equal(initial[bioreactor.IdxV]))
			}
		})
	})

	Context("with invalid input", func() {
		It("rejects a zero initial volume before integrating", func() {
			initial[bioreactor.IdxV] = 0
			results, err := s.Sweep(context.Background(), initial, []bioreactor.Scenario{fast}, cfg)
			Expect(results).To(BeNil())
			Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())

			var cfgErr *dynamo.ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal("initial.v"))
		})
	})

	Context("when the step budget is exhausted", func() {
		It("fails each scenario and keeps its partial trajectory", func() {
			cfg.Solver.MaxSteps = 3
			results, err := s.Sweep(context.Background(), initial, []bioreactor.Scenario{fast, slow}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, res := range results {
				Expect(res.Status).To(Equal(StatusFailure))
				Expect(errors.Is(res.Err, dynamo.ErrMaxSteps)).To(BeTrue())
				Expect(res.Trajectory.Len()).To(BeNumerically(">=", 1))
				Expect(res.Trajectory.States[0]).To(Equal(initial))
			}
		})
	})

	Context("when the caller cancels", func() {
		It("marks every scenario cancelled and keeps the results", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			results, err := s.Sweep(ctx, initial, []bioreactor.Scenario{fast, slow}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, res := range results {
				Expect(res.Status).To(Equal(StatusCancelled))
				Expect(errors.Is(res.Err, context.Canceled)).To(BeTrue())
			}
		})
	})
})
