// Package simulation assembles a cache model run: the cache
// controllers, the trace recorder, and the monitoring server.
package simulation

import (
	"github.com/sarchlab/dcachesim/datarecording"
	"github.com/sarchlab/dcachesim/dcache"
	"github.com/sarchlab/dcachesim/monitoring"
)

// A Simulation provides the services required to run a cache model.
type Simulation struct {
	id string

	dataRecorder datarecording.DataRecorder
	tracer       *datarecording.Tracer
	monitor      *monitoring.Monitor

	comps         []*dcache.Comp
	compNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetDataRecorder returns the data recorder used in the simulation.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetTracer returns the tracer used in the simulation.
func (s *Simulation) GetTracer() *datarecording.Tracer {
	return s.tracer
}

// GetMonitor returns the monitor used in the simulation. It is nil when
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// RegisterComponent registers a cache controller with the simulation.
func (s *Simulation) RegisterComponent(c *dcache.Comp) {
	compName := c.Name()
	if _, registered := s.compNameIndex[compName]; registered {
		panic("component " + compName + " already registered")
	}

	s.comps = append(s.comps, c)
	s.compNameIndex[compName] = len(s.comps) - 1

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}
}

// Components returns all the registered cache controllers.
func (s *Simulation) Components() []*dcache.Comp {
	return s.comps
}

// GetComponentByName returns the cache controller with the given name.
func (s *Simulation) GetComponentByName(name string) *dcache.Comp {
	return s.comps[s.compNameIndex[name]]
}

// Terminate flushes the recorded traces.
func (s *Simulation) Terminate() {
	s.tracer.Flush()
}
