package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/sarchlab/dcachesim/datarecording"
	"github.com/sarchlab/dcachesim/dcache"
	"github.com/sarchlab/dcachesim/mem"
	"github.com/sarchlab/dcachesim/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a randomized traffic sweep through the cache model.",
	Run:   runSweep,
}

//nolint:errcheck
func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("num-requests", "n", 1000,
		"number of load/store requests to issue")
	runCmd.Flags().Int64("seed", 1,
		"seed for the traffic generator")
	runCmd.Flags().StringP("output", "o", "",
		"name of the SQLite trace file")
	runCmd.Flags().Bool("clickhouse",
		false, "record traces to ClickHouse instead of SQLite")
	runCmd.Flags().Bool("no-monitor", false,
		"disable the monitoring server")
	runCmd.Flags().Int("monitor-port", 0,
		"port for the monitoring server")
	runCmd.Flags().Bool("browser", false,
		"open the monitoring server in the local browser")

	runCmd.Flags().Int("mem-entries", 64,
		"number of words in the bottom memory")
	runCmd.Flags().Int("cache-entries", 8,
		"number of cache slots")
	runCmd.Flags().Int("mshr-entries", 4,
		"number of miss buffer slots")
	runCmd.Flags().Int("wbuf-entries", 4,
		"number of write buffer slots")
	runCmd.Flags().Int("rtab-entries", 16,
		"number of replay table slots")
	runCmd.Flags().Int("drain-threshold", 2,
		"drain steps before a write becomes eligible to send")
}

//nolint:errcheck,funlen
func runSweep(cmd *cobra.Command, _ []string) {
	numRequests, _ := cmd.Flags().GetInt("num-requests")
	seed, _ := cmd.Flags().GetInt64("seed")
	memEntries, _ := cmd.Flags().GetInt("mem-entries")

	s := buildSimulation(cmd)
	defer s.Terminate()

	comp := buildComp(cmd)
	s.RegisterComponent(comp)

	tracer := s.GetTracer()
	rng := rand.New(rand.NewSource(seed))

	tid := mem.FirstTID
	rejected := 0

	for issued := 0; issued < numRequests; {
		stepHazardClearing(comp, tracer, rng)

		req := randomRequest(rng, tid, memEntries)

		outcome, err := comp.Process(req)
		if errors.Is(err, dcache.ErrReplayTableFull) {
			// Backpressure: the replay table cannot take another
			// request until a refill or drain clears a chain.
			rejected++
			quiesceOnce(comp, tracer)

			continue
		}

		if err != nil {
			log.Fatalf("processing request %s: %v", req, err)
		}

		tracer.RecordAccess(datarecording.AccessEntry{
			Op:     req.Op.String(),
			Addr:   int(req.Addr),
			Data:   int(req.Data),
			Reason: outcome.Reason.String(),
			Hit:    outcome.Hit,
			Parked: outcome.Parked,
		})

		issued++
		tid = tid.Succ()
	}

	quiesce(comp, tracer)

	if err := comp.CheckInvariants(); err != nil {
		log.Fatalf("invariant violated after sweep: %v", err)
	}

	reportStats(comp, rejected)
}

func buildSimulation(cmd *cobra.Command) *simulation.Simulation {
	noMonitor, _ := cmd.Flags().GetBool("no-monitor")
	monitorPort, _ := cmd.Flags().GetInt("monitor-port")
	openBrowser, _ := cmd.Flags().GetBool("browser")
	clickHouse, _ := cmd.Flags().GetBool("clickhouse")
	output, _ := cmd.Flags().GetString("output")

	b := simulation.MakeBuilder()

	if noMonitor {
		b = b.WithoutMonitoring()
	} else {
		if monitorPort > 0 {
			b = b.WithMonitorPort(monitorPort)
		}

		if openBrowser {
			b = b.WithBrowser()
		}
	}

	if clickHouse {
		b = b.WithClickHouseRecorder()
	} else if output != "" {
		b = b.WithOutputFileName(output)
	}

	return b.Build()
}

func buildComp(cmd *cobra.Command) *dcache.Comp {
	memEntries, _ := cmd.Flags().GetInt("mem-entries")
	cacheEntries, _ := cmd.Flags().GetInt("cache-entries")
	mshrEntries, _ := cmd.Flags().GetInt("mshr-entries")
	wbufEntries, _ := cmd.Flags().GetInt("wbuf-entries")
	rtabEntries, _ := cmd.Flags().GetInt("rtab-entries")
	drainThreshold, _ := cmd.Flags().GetInt("drain-threshold")

	return dcache.MakeBuilder().
		WithMemNumEntries(memEntries).
		WithCacheNumEntries(cacheEntries).
		WithMSHRNumEntries(mshrEntries).
		WithWBufNumEntries(wbufEntries).
		WithRTabNumEntries(rtabEntries).
		WithWBufDrainThreshold(drainThreshold).
		Build("L1D")
}

func randomRequest(rng *rand.Rand, tid mem.TID, memEntries int) mem.Request {
	op := mem.OpLoad
	if rng.Intn(4) == 0 {
		op = mem.OpStore
	}

	// Quadratic skew keeps most traffic on low addresses so hits,
	// collisions, and evictions all occur.
	addr := mem.Addr(rng.Intn(memEntries)*rng.Intn(memEntries)/
		memEntries + 1)

	return mem.Request{
		Op:   op,
		Addr: addr,
		Data: mem.Data(rng.Intn(1000) + 1),
		TID:  tid,
	}
}

// stepHazardClearing models the asynchronous part of the system: drain
// steps pass and the bottom memory answers misses, each at its own pace.
func stepHazardClearing(
	comp *dcache.Comp,
	tracer *datarecording.Tracer,
	rng *rand.Rand,
) {
	if rng.Intn(2) == 0 {
		comp.Tick()
	}

	if rng.Intn(4) == 0 {
		drainOne(comp, tracer)
	}

	if pending := comp.PendingMisses(); len(pending) > 0 &&
		rng.Intn(4) == 0 {
		refill(comp, tracer, pending[0])
	}
}

func drainOne(comp *dcache.Comp, tracer *datarecording.Tracer) {
	addr, data, drained, err := comp.DrainOne()
	if err != nil {
		log.Fatalf("draining write buffer: %v", err)
	}

	if drained {
		tracer.RecordDrain(int(addr), int(data))
	}
}

func refill(
	comp *dcache.Comp,
	tracer *datarecording.Tracer,
	addr mem.Addr,
) {
	outcome, err := comp.Process(mem.Request{Op: mem.OpRefill, Addr: addr})
	if err != nil {
		log.Fatalf("refilling address %d: %v", addr, err)
	}

	tracer.RecordRefill(int(addr), int(outcome.Data))
}

// quiesceOnce clears one round of hazards: it answers every pending
// miss, then ages and drains the write buffer once.
func quiesceOnce(comp *dcache.Comp, tracer *datarecording.Tracer) {
	for _, addr := range comp.PendingMisses() {
		refill(comp, tracer, addr)
	}

	comp.Tick()
	drainOne(comp, tracer)
}

// quiesce runs hazard-clearing rounds until every bounded structure is
// empty, so the trace ends with all requests resolved.
func quiesce(comp *dcache.Comp, tracer *datarecording.Tracer) {
	for {
		mshrOcc, wbufOcc, rtabOcc := comp.Occupancy()
		if mshrOcc == 0 && wbufOcc == 0 && rtabOcc == 0 {
			return
		}

		quiesceOnce(comp, tracer)
	}
}

func reportStats(comp *dcache.Comp, rejected int) {
	stats := comp.Stats()

	bytes, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(bytes))

	accesses := stats.Hits + stats.Misses
	if accesses > 0 {
		fmt.Printf("Hit rate: %.2f%%\n",
			float64(stats.Hits)/float64(accesses)*100)
	}

	if rejected > 0 {
		fmt.Printf("Rejected by backpressure: %d\n", rejected)
	}
}
