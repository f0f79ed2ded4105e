package alarm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"daily-tracker/internal/logging"
)

var ErrUnknownPattern = errors.New("unknown ringtone")

// Device emits tones. Tone blocks for the step and returns early when ctx
// ends; Silence cuts any sound still playing.
type Device interface {
	Tone(ctx context.Context, step Step) error
	Silence()
}

// Player drives a Device it owns exclusively. Starting a pattern stops the
// previous one first, so tones never overlap.
type Player struct {
	device Device
	log    logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPlayer(device Device, log logging.Logger) *Player {
	return &Player{device: device, log: log}
}

// Play runs the named pattern. After each full pass it replays after
// RepeatPause while repeatWhile returns true; a nil repeatWhile plays once.
func (p *Player) Play(name string, repeatWhile func() bool) error {
	pattern, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if len(pattern) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.run(ctx, done, name, pattern, repeatWhile)
	return nil
}

func (p *Player) run(ctx context.Context, done chan struct{}, name string, pattern Pattern, repeatWhile func() bool) {
	defer close(done)

	for {
		for _, step := range pattern {
			if err := p.device.Tone(ctx, step); err != nil {
				if ctx.Err() == nil {
					p.log.Error(ctx, "tone failed", "pattern", name, "err", err)
				}
				return
			}
		}
		if repeatWhile == nil || !repeatWhile() {
			return
		}
		if err := p.device.Tone(ctx, Step{Duration: RepeatPause}); err != nil {
			return
		}
	}
}

// Stop silences the device and cancels pending repeats. It does nothing when
// idle.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.device.Silence()
	p.cancel = nil
}

// Playing reports whether a pattern is still running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Wait blocks until the current playback ends on its own or is stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}
