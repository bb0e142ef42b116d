package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

type regenerationFlight struct {
	done chan struct{}
	doc  *domain.MinutesDocument
	err  error
}

func newRegenerationFlight() *regenerationFlight {
	return &regenerationFlight{done: make(chan struct{})}
}

type regenerationSlot struct {
	queued *regenerationFlight
}

// regenerationGate serializes runs per meeting. While a run is in flight every new
// trigger joins a single queued follow-up run; it is started when the current run
// finishes and observes everything persisted up to that point.
type regenerationGate struct {
	run        func(meetingID string) (*domain.MinutesDocument, error)
	onCoalesce func()

	mu    sync.Mutex
	slots map[string]*regenerationSlot
}

func newRegenerationGate(run func(meetingID string) (*domain.MinutesDocument, error), onCoalesce func()) *regenerationGate {
	if onCoalesce == nil {
		onCoalesce = func() {}
	}
	return &regenerationGate{
		run:        run,
		onCoalesce: onCoalesce,
		slots:      make(map[string]*regenerationSlot),
	}
}

func (g *regenerationGate) enqueue(meetingID string) *regenerationFlight {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot, running := g.slots[meetingID]
	if !running {
		flight := newRegenerationFlight()
		g.slots[meetingID] = &regenerationSlot{}
		go g.drain(meetingID, flight)
		return flight
	}
	if slot.queued == nil {
		slot.queued = newRegenerationFlight()
	}
	g.onCoalesce()
	return slot.queued
}

func (g *regenerationGate) wait(ctx context.Context, meetingID string) (*domain.MinutesDocument, error) {
	flight := g.enqueue(meetingID)
	select {
	case <-flight.done:
		return flight.doc, flight.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *regenerationGate) drain(meetingID string, flight *regenerationFlight) {
	for flight != nil {
		flight.doc, flight.err = g.safeRun(meetingID)
		close(flight.done)

		g.mu.Lock()
		slot := g.slots[meetingID]
		flight = slot.queued
		slot.queued = nil
		if flight == nil {
			delete(g.slots, meetingID)
		}
		g.mu.Unlock()
	}
}

func (g *regenerationGate) safeRun(meetingID string) (doc *domain.MinutesDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("regeneration panic for meeting %s: %v", meetingID, r)
		}
	}()
	return g.run(meetingID)
}
