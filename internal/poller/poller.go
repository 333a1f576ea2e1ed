// Package poller runs the per-sensor sampling loop. All sensor drivers
// share the same loop shape; only the driver, the sample interval and the
// fault threshold differ.
package poller

import (
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/env_monitor/internal/sample"
)

// State of a sampling loop.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateSampling
	StateFaulted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateSampling:
		return "sampling"
	case StateFaulted:
		return "faulted"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Driver is one sensor as seen by the loop. Read returning (_, false, nil)
// means no sample was available this cycle (not ready, bad CRC); it counts
// toward the fault threshold but is not an escalated error.
type Driver interface {
	Name() string
	Connect() error
	Read() (sample.Sample, bool, error)
	Close() error
}

// Options tune one loop instance.
type Options struct {
	// Interval between reads.
	Interval time.Duration
	// FaultThreshold is the number of consecutive failed reads that
	// trips the loop into the faulted state.
	FaultThreshold int
	// QueueSize bounds the sample channel. When the consumer falls
	// behind, the newest sample is dropped with a log line.
	QueueSize int
}

func (o *Options) fill() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.FaultThreshold <= 0 {
		o.FaultThreshold = 3
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
}

// Poller drives one sensor. Create with New, start with Run (blocking,
// usually in its own goroutine), consume from Samples.
type Poller struct {
	driver Driver
	opts   Options

	out  chan sample.Sample
	stop chan struct{}
	done chan struct{}

	stopOnce sync.Once

	mu    sync.Mutex
	state State
}

func New(driver Driver, opts Options) *Poller {
	opts.fill()
	return &Poller{
		driver: driver,
		opts:   opts,
		out:    make(chan sample.Sample, opts.QueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		state:  StateDisconnected,
	}
}

// Samples is the loop's output channel. Closed when the loop exits.
func (p *Poller) Samples() <-chan sample.Sample { return p.out }

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Stop requests a cooperative stop and waits for the loop to exit. An
// in-flight read completes first.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// Run executes the sampling loop until a stop request or a terminal
// fault. A fault (FaultThreshold consecutive failed reads) triggers
// exactly one reconnect cycle; a second fault, or a failed reconnect,
// terminates the loop in the stopped state. A connect failure before
// the sensor ever delivered samples is retried once on its own budget,
// so a slow startup does not eat the fault reconnect.
func (p *Poller) Run() {
	defer close(p.done)
	defer close(p.out)

	name := p.driver.Name()
	connectRetried := false
	reconnected := false
	for {
		select {
		case <-p.stop:
			p.setState(StateStopped)
			return
		default:
		}

		p.setState(StateConnecting)
		if err := p.driver.Connect(); err != nil {
			log.Printf("[%s] connect: %v", name, err)
			if reconnected {
				log.Printf("[%s] reconnect exhausted, stopping", name)
				p.setState(StateStopped)
				return
			}
			if connectRetried {
				log.Printf("[%s] connect retry exhausted, stopping", name)
				p.setState(StateStopped)
				return
			}
			connectRetried = true
			continue
		}
		p.setState(StateReady)

		if stopped := p.sampleLoop(name); stopped {
			p.driver.Close()
			p.setState(StateStopped)
			return
		}

		// Fault threshold reached.
		p.setState(StateFaulted)
		p.driver.Close()
		if reconnected {
			log.Printf("[%s] faulted again after reconnect, stopping", name)
			p.setState(StateStopped)
			return
		}
		log.Printf("[%s] %d consecutive read failures, reconnecting", name, p.opts.FaultThreshold)
		reconnected = true
	}
}

// sampleLoop reads until stopped (returns true) or faulted (returns false).
func (p *Poller) sampleLoop(name string) bool {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-p.stop:
			return true
		default:
		}

		p.setState(StateSampling)
		s, ok, err := p.driver.Read()
		switch {
		case err != nil:
			failures++
			log.Printf("[%s] read: %v", name, err)
		case !ok:
			failures++
		default:
			failures = 0
			p.emit(name, s)
		}
		if failures >= p.opts.FaultThreshold {
			return false
		}
		p.setState(StateReady)

		select {
		case <-p.stop:
			return true
		case <-ticker.C:
		}
	}
}

func (p *Poller) emit(name string, s sample.Sample) {
	select {
	case p.out <- s:
	default:
		log.Printf("[%s] sample queue full, dropping sample", name)
	}
}
