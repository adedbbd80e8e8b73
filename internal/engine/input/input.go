// Package input turns SDL2 events into overlay events.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType tags an Event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventMouseDown
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Width  int
	Height int
	MouseX int
	MouseY int
	Button uint8
}

// Input collects the events of one tick.
type Input struct {
	events []Event
}

// New creates a new input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Update polls SDL events. Returns true if the window was closed.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	quit := false
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit})
			quit = true

		case *sdl.WindowEvent:
			// SIZE_CHANGED also fires for fullscreen toggles; RESIZED only for user drags.
			if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.pushResize(int(e.Data1), int(e.Data2))
			}

		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Repeat == 0 {
				i.events = append(i.events, Event{
					Type: EventKeyDown,
					Key:  e.Keysym.Scancode,
				})
			}

		case *sdl.MouseButtonEvent:
			if e.Type == sdl.MOUSEBUTTONDOWN {
				i.events = append(i.events, Event{
					Type:   EventMouseDown,
					MouseX: int(e.X),
					MouseY: int(e.Y),
					Button: e.Button,
				})
			}
		}
	}

	return quit
}

// pushResize coalesces resize events so only the final size of a tick is
// reported.
func (i *Input) pushResize(w, h int) {
	for k := range i.events {
		if i.events[k].Type == EventWindowResize {
			i.events[k].Width, i.events[k].Height = w, h
			return
		}
	}
	i.events = append(i.events, Event{Type: EventWindowResize, Width: w, Height: h})
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// IsKeyPressed checks if a specific key was pressed this tick.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}

// Clicks returns the positions of left-button presses this tick.
func (i *Input) Clicks() [][2]int {
	var out [][2]int
	for _, e := range i.events {
		if e.Type == EventMouseDown && e.Button == sdl.BUTTON_LEFT {
			out = append(out, [2]int{e.MouseX, e.MouseY})
		}
	}
	return out
}
