package pack

import "sync"

// Idle is the progress value while no archive is being built.
const Idle = -1.0

// Progress holds the current packing progress and fans changes out to
// subscribers. Each subscriber always observes the latest value; slow
// subscribers skip intermediate ones.
type Progress struct {
	mu    sync.Mutex
	value float64
	subs  map[chan float64]struct{}
}

// NewProgress returns an idle hub.
func NewProgress() *Progress {
	return &Progress{value: Idle, subs: make(map[chan float64]struct{})}
}

// Value returns the current progress.
func (p *Progress) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Busy reports whether a pack is running.
func (p *Progress) Busy() bool {
	return p.Value() != Idle
}

// Set publishes v if it differs from the current value.
func (p *Progress) Set(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(v)
}

func (p *Progress) setLocked(v float64) {
	if v == p.value {
		return
	}
	p.value = v
	for ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// begin moves the hub from idle to 0. It returns false when a pack is
// already running.
func (p *Progress) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.value != Idle {
		return false
	}
	p.setLocked(0)
	return true
}

// Subscribe registers for progress changes. The returned cancel func
// unregisters and closes the channel.
func (p *Progress) Subscribe() (<-chan float64, func()) {
	ch := make(chan float64, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}
