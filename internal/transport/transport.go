// SPDX-License-Identifier: MIT
// Package transport fans published snapshots out to off-process consumers
// (websocket visualizers, UDP listeners). Transports must be safe for
// concurrent use and must never block the analysis pipeline: the Pump is
// the only caller and runs on its own ticker.
package transport

import (
	"sync"
	"time"

	applog "lumen/internal/log"
	"lumen/internal/state"
)

// Transport sends one snapshot to an external consumer.
type Transport interface {
	Send(snap *state.Snapshot) error
	Close() error
}

// Pump drives the network consumption cadence: on every tick it publishes
// a fresh snapshot and hands it to each transport. This mirrors what a
// local render loop does at 60Hz.
type Pump struct {
	publisher  *state.Publisher
	transports []Transport
	interval   time.Duration

	mu       sync.Mutex
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPump creates a pump publishing every interval (minimum 1ms) to the
// given transports.
func NewPump(publisher *state.Publisher, interval time.Duration, transports ...Transport) *Pump {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Pump{
		publisher:  publisher,
		transports: transports,
		interval:   interval,
	}
}

// Start launches the pump goroutine. Calling Start on a running pump is a
// no-op.
func (p *Pump) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker, done := p.ticker, p.done
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("Transport: snapshot pump started (every %s, %d transport(s))", p.interval, len(p.transports))
		for {
			select {
			case <-ticker.C:
				snap := p.publisher.Publish(time.Now())
				for _, t := range p.transports {
					if err := t.Send(snap); err != nil {
						applog.Debugf("Transport: send failed: %v", err)
					}
				}
			case <-done:
				return
			}
		}
	}()
}

// Stop terminates the pump goroutine and closes every transport.
func (p *Pump) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	ticker, done := p.ticker, p.done
	p.ticker = nil
	p.mu.Unlock()

	p.stopOnce.Do(func() {
		ticker.Stop()
		close(done)
	})
	p.wg.Wait()

	var firstErr error
	for _, t := range p.transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
