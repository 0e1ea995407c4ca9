package simulation

import (
	"github.com/rs/xid"

	"github.com/sarchlab/dcachesim/datarecording"
	"github.com/sarchlab/dcachesim/monitoring"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	clickHouse     bool
	outputFileName string
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn: true,
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the local browser at the monitoring server once the
// simulation is built.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithClickHouseRecorder records traces to the ClickHouse database
// configured through the environment instead of a local SQLite file.
func (b Builder) WithClickHouseRecorder() Builder {
	b.clickHouse = true
	return b
}

// WithOutputFileName sets the custom output file name for the data
// recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.monitorOn && b.openBrowser {
		panic("browser cannot be opened when monitoring is disabled")
	}

	if b.clickHouse && b.outputFileName != "" {
		panic("output file name cannot be set " +
			"when recording to ClickHouse")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		compNameIndex: make(map[string]int),
	}

	s.id = xid.New().String()

	if b.clickHouse {
		s.dataRecorder = datarecording.NewClickHouseRecorderFromEnv()
	} else {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "dcachesim_" + s.id
		}
		s.dataRecorder = datarecording.NewSQLiteRecorder(outputPath)
	}

	s.tracer = datarecording.NewTracer(s.dataRecorder)

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		s.monitor.StartServer(b.openBrowser)
	}

	return s
}
