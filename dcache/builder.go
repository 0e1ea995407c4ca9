package dcache

import (
	"github.com/sarchlab/dcachesim/dcache/internal/mshr"
	"github.com/sarchlab/dcachesim/dcache/internal/rtab"
	"github.com/sarchlab/dcachesim/dcache/internal/tagging"
	"github.com/sarchlab/dcachesim/dcache/internal/wbuf"
	"github.com/sarchlab/dcachesim/mem"
)

// A Builder can build cache controllers. All capacities are fixed at
// build time; the structures never grow.
type Builder struct {
	memNumEntries      int
	cacheNumEntries    int
	mshrNumEntries     int
	wbufNumEntries     int
	rtabNumEntries     int
	wbufDrainThreshold int
	victimFinder       tagging.VictimFinder
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		memNumEntries:      16,
		cacheNumEntries:    4,
		mshrNumEntries:     4,
		wbufNumEntries:     4,
		rtabNumEntries:     8,
		wbufDrainThreshold: 2,
	}
}

// WithMemNumEntries sets the size of the backed address domain.
func (b Builder) WithMemNumEntries(n int) Builder {
	b.memNumEntries = n
	return b
}

// WithCacheNumEntries sets the number of cache line slots.
func (b Builder) WithCacheNumEntries(n int) Builder {
	b.cacheNumEntries = n
	return b
}

// WithMSHRNumEntries sets the miss-buffer capacity.
func (b Builder) WithMSHRNumEntries(n int) Builder {
	b.mshrNumEntries = n
	return b
}

// WithWBufNumEntries sets the write-buffer capacity.
func (b Builder) WithWBufNumEntries(n int) Builder {
	b.wbufNumEntries = n
	return b
}

// WithRTabNumEntries sets the replay-table capacity.
func (b Builder) WithRTabNumEntries(n int) Builder {
	b.rtabNumEntries = n
	return b
}

// WithWBufDrainThreshold sets the number of ticks a write ages before it
// becomes eligible to drain.
func (b Builder) WithWBufDrainThreshold(n int) Builder {
	b.wbufDrainThreshold = n
	return b
}

// WithVictimFinder replaces the default pseudo-LRU replacement policy.
func (b Builder) WithVictimFinder(vf tagging.VictimFinder) Builder {
	b.victimFinder = vf
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.memNumEntries <= 0 {
		panic("memory must back at least one address")
	}

	if b.cacheNumEntries <= 0 || b.cacheNumEntries > b.memNumEntries {
		panic("cache slot count must be in [1, mem entries]")
	}

	if b.mshrNumEntries <= 0 || b.wbufNumEntries <= 0 ||
		b.rtabNumEntries <= 0 {
		panic("mshr, wbuf, and rtab capacities must be positive")
	}

	if b.wbufDrainThreshold <= 0 {
		panic("wbuf drain threshold must be positive")
	}
}

// Build builds a cache controller with the given name.
func (b Builder) Build(name string) *Comp {
	b.parametersMustBeValid()

	vf := b.victimFinder
	if vf == nil {
		vf = tagging.NewPLRUVictimFinder()
	}

	return &Comp{
		name:         name,
		storage:      mem.NewStorage(b.memNumEntries),
		tags:         tagging.NewTags(b.cacheNumEntries),
		victimFinder: vf,
		mshr:         mshr.NewMSHR(b.mshrNumEntries),
		wbuf:         wbuf.NewWBUF(b.wbufNumEntries, b.wbufDrainThreshold),
		rtab:         rtab.NewRTAB(b.rtabNumEntries),
	}
}
