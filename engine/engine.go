package engine

import (
	"context"
	"sync"

	"intellirefactor/candidate"
	"intellirefactor/logger"
)

// Engine runs refactoring commands for one editor connection. All state
// changes happen on the event loop goroutine; candidate resolution runs
// in a goroutine per invocation and reports back through the event
// channel.
type Engine struct {
	editor  Editor
	fetcher candidate.Fetcher
	config  EngineConfig

	// ambient is the editor's selection cell in compatibility mode. It
	// outlives invocations so a superseded query and its successor never
	// hold the selection forced together.
	ambient *candidate.AmbientSelection

	state     state
	mu        sync.RWMutex
	eventChan chan Event

	// Main context and cancel for the engine lifecycle
	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once

	current *invocation
	picker  *pickerState
	nextID  int
}

func NewEngine(editor Editor, fetcher candidate.Fetcher, config EngineConfig) *Engine {
	return &Engine{
		editor:    editor,
		fetcher:   fetcher,
		config:    config,
		ambient:   candidate.NewAmbientSelection(nil),
		state:     stateIdle,
		eventChan: make(chan Event, 100),
	}
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	// Create main context for engine lifecycle
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.eventLoop(e.mainCtx)
	logger.Info("engine started")
}

// Stop gracefully shuts down the engine and cancels in-flight work
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")

		e.stopped = true
		if e.mainCancel != nil {
			e.mainCancel()
		}
		if e.current != nil {
			e.current.cancel()
			e.current = nil
		}
		e.picker = nil
		e.state = stateIdle
		// eventChan stays open: RPC handlers may still post after Stop,
		// and the loop exits on mainCtx.

		logger.Info("engine stopped")
	})
}

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop panic recovered: %v", r)
			e.eventLoop(e.mainCtx) // Restart the event loop
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-e.eventChan:
			if !ok {
				return
			}

			e.mu.RLock()
			stopped := e.stopped
			e.mu.RUnlock()
			if stopped {
				return
			}

			// Wrap event handling in its own recovery
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	logger.Debug("handle event: %v (state %v)", event.Type, e.state)

	switch event.Type {
	case EventInvoke:
		req := event.Data.(invokeRequest)
		e.handleInvoke(req.id, req.fromMarks)
	case EventFocusLost:
		e.handleFocusLost()
	case EventResolved:
		e.handleResolved(event.Data.(*resolution))
	case EventResolveError:
		e.handleResolveError(event.Data.(*resolveFailure))
	case EventPickerActive:
		e.handlePickerActive(event.Data.(int))
	case EventPickerAccept:
		e.handlePickerAccept(event.Data.(int))
	case EventPickerCancel:
		e.handlePickerCancel()
	}
}

// post queues an event for the loop. It gives up when the engine stops.
func (e *Engine) post(event Event) {
	e.mu.RLock()
	stopped := e.stopped
	ctx := e.mainCtx
	e.mu.RUnlock()
	if stopped || ctx == nil {
		return
	}

	select {
	case e.eventChan <- event:
	case <-ctx.Done():
	}
}

// Invoke runs the command with the given id. fromMarks takes the selection
// from the last visual marks instead of the live mode.
func (e *Engine) Invoke(id string, fromMarks bool) {
	e.post(Event{Type: EventInvoke, Data: invokeRequest{id: id, fromMarks: fromMarks}})
}

// HandleEditorEvent forwards a named editor event such as focus_lost.
func (e *Engine) HandleEditorEvent(name string) {
	eventType := EventTypeFromString(name)
	if eventType != EventFocusLost {
		logger.Debug("ignoring editor event %q", name)
		return
	}
	e.post(Event{Type: eventType})
}

// HandlePickerEvent forwards an active/accept/cancel event from the picker.
func (e *Engine) HandlePickerEvent(name string, index int) {
	eventType := EventTypeFromString(name)
	switch eventType {
	case EventPickerActive, EventPickerAccept, EventPickerCancel:
		e.post(Event{Type: eventType, Data: index})
	default:
		logger.Debug("ignoring picker event %q", name)
	}
}
