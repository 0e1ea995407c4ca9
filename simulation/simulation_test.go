package simulation

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dcachesim/dcache"
)

var _ = Describe("Simulation", func() {
	var (
		simulation *Simulation
		comp       *dcache.Comp
	)

	BeforeEach(func() {
		simulation = MakeBuilder().WithoutMonitoring().Build()

		comp = dcache.MakeBuilder().Build("L1D")
	})

	AfterEach(func() {
		simulation.Terminate()

		os.Remove("dcachesim_" + simulation.ID() + ".sqlite3")
	})

	It("should register a component", func() {
		simulation.RegisterComponent(comp)

		Expect(simulation.GetComponentByName("L1D")).To(Equal(comp))
	})

	It("should return all registered components", func() {
		simulation.RegisterComponent(comp)

		comps := simulation.Components()
		Expect(comps).To(HaveLen(1))
		Expect(comps[0]).To(Equal(comp))
	})

	It("should panic when registering the same name twice", func() {
		simulation.RegisterComponent(comp)

		Expect(func() {
			simulation.RegisterComponent(dcache.MakeBuilder().Build("L1D"))
		}).To(Panic())
	})

	Context("Builder with custom output file", func() {
		var customSim *Simulation

		AfterEach(func() {
			if customSim != nil {
				customSim.Terminate()
				os.Remove("test_custom_output.sqlite3")
				customSim = nil
			}
		})

		It("should allow custom output file to be set", func() {
			builder := MakeBuilder().
				WithoutMonitoring().
				WithOutputFileName("test_custom_output")
			customSim = builder.Build()

			Expect(customSim).ToNot(BeNil())
			Expect(customSim.GetDataRecorder()).ToNot(BeNil())
			Expect(customSim.GetTracer()).ToNot(BeNil())
		})
	})
})
