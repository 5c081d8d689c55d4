package processor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Progress receives the total once and increments as units finish.
// Implementations must be safe for concurrent use.
type Progress interface {
	Start(total int)
	Add(n int)
	Finish()
}

type noProgress struct{}

func (noProgress) Start(int) {}
func (noProgress) Add(int)   {}
func (noProgress) Finish()   {}

// LogProgress reports progress through the logger every Step percent.
type LogProgress struct {
	Name string
	Step int

	mu      sync.Mutex
	total   int
	done    int
	next    int
	started time.Time
}

// NewLogProgress returns a progress sink logging every 10 percent.
func NewLogProgress(name string) *LogProgress {
	return &LogProgress{Name: name, Step: 10}
}

// Start records the total number of units.
func (p *LogProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Step <= 0 {
		p.Step = 10
	}
	p.total = total
	p.done = 0
	p.next = p.Step
	p.started = time.Now()

	log.Info().Str("dataset", p.Name).Int("total", total).Msg("Converting")
}

// Add counts finished units.
func (p *LogProgress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += n
	if p.total == 0 {
		return
	}
	pct := p.done * 100 / p.total
	if pct < p.next || pct >= 100 {
		return
	}
	for p.next <= pct {
		p.next += p.Step
	}

	log.Debug().
		Str("dataset", p.Name).
		Int("done", p.done).
		Int("total", p.total).
		Int("percent", pct).
		Msg("In progress")
}

// Finish logs the final tally.
func (p *LogProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Info().
		Str("dataset", p.Name).
		Int("done", p.done).
		Dur("elapsed", time.Since(p.started)).
		Msg("Done")
}

// Done returns the number of units counted so far.
func (p *LogProgress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
