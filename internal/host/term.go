package host

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/rainbow-overlay/internal/config"
	"github.com/Faultbox/rainbow-overlay/internal/engine/audio"
	"github.com/Faultbox/rainbow-overlay/internal/engine/debug"
	"github.com/Faultbox/rainbow-overlay/internal/engine/soft"
	"github.com/Faultbox/rainbow-overlay/internal/engine/title"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
	"github.com/Faultbox/rainbow-overlay/internal/overlay"
)

// Each terminal cell shows two vertically stacked pixels.
const halfBlock = '▀'

var titleStyle = tcell.StyleDefault.
	Foreground(tcell.NewRGBColor(int32(TitleColor.R), int32(TitleColor.G), int32(TitleColor.B))).
	Background(tcell.ColorBlack).
	Bold(true)

// Term draws the overlay into a terminal with the software renderer.
type Term struct {
	cfg      config.HostConfig
	screen   tcell.Screen
	renderer *soft.Renderer
	overlay  *overlay.Overlay
	cue      *audio.Manager
	shots    *debug.ScreenshotCapture

	title    []rune
	titleRow int
	titleCol int
}

// NewTerm takes over the terminal. A nil screen opens the real terminal;
// tests pass a simulation screen.
func NewTerm(cfg *config.Config, plan *Plan, screen tcell.Screen) (*Term, error) {
	if screen == nil {
		var err error
		screen, err = tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("opening terminal: %w", err)
		}
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initialising terminal: %w", err)
	}
	screen.EnableMouse()
	screen.HideCursor()

	t := &Term{
		cfg:      cfg.Host,
		screen:   screen,
		renderer: soft.New(),
		shots:    debug.NewScreenshotCapture(cfg.Host.ScreenshotDir, "overlay"),
		title:    []rune(plan.Title),
	}

	cols, rows := screen.Size()
	oc := plan.Overlay
	oc.Width, oc.Height = surfaceSize(cols, rows)
	t.layoutTitle(cols, rows)

	t.cue = newCue(cfg.Audio)

	ov, err := overlay.New(oc, t.renderer, options(nil, t.cue, plan)...)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("creating overlay: %w", err)
	}
	t.overlay = ov

	logger.Info("terminal host ready",
		zap.Int("cols", cols),
		zap.Int("rows", rows),
	)
	return t, nil
}

// surfaceSize maps a terminal grid to the pixel surface it can show.
func surfaceSize(cols, rows int) (int, int) {
	return max(cols, 1), max(rows*2, 1)
}

func (t *Term) layoutTitle(cols, rows int) {
	t.titleRow = int(float64(rows*2)*title.CenterY) / 2
	t.titleCol = (cols - len(t.title)) / 2
}

// hitTitle reports whether a cell lies on the title text.
func (t *Term) hitTitle(x, y int) bool {
	return len(t.title) > 0 && y == t.titleRow && x >= t.titleCol && x < t.titleCol+len(t.title)
}

// Run pumps terminal events and ticks the overlay at the configured rate.
func (t *Term) Run(ctx context.Context) error {
	hz := t.cfg.Hz
	if hz <= 0 {
		hz = 60
	}
	period := time.Duration(float64(time.Second) / hz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	events := make(chan tcell.Event, 16)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	}()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			if !t.handleEvent(ev) {
				logger.Info("terminal host quit")
				return nil
			}

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			more, err := t.overlay.Tick(dt)
			if err != nil {
				return err
			}
			t.draw()
			if !more {
				return nil
			}
		}
	}
}

// handleEvent returns false when the user asked to quit.
func (t *Term) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyEnter:
			t.overlay.OnDismiss()
		case tcell.KeyF12:
			t.screenshot()
		case tcell.KeyRune:
			if ev.Rune() == ' ' {
				t.overlay.OnDismiss()
			}
		}

	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			x, y := ev.Position()
			if t.hitTitle(x, y) {
				t.overlay.OnDismiss()
			}
		}

	case *tcell.EventResize:
		t.screen.Sync()
		cols, rows := t.screen.Size()
		t.layoutTitle(cols, rows)
		t.overlay.OnResize(surfaceSize(cols, rows))
	}
	return true
}

func (t *Term) draw() {
	img := t.renderer.Image()
	if img == nil {
		return
	}

	cols, rows := t.screen.Size()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			t.screen.SetContent(x, y, halfBlock, nil, cellStyle(img, x, y))
		}
	}

	if !t.overlay.Dismissed() {
		for i, r := range t.title {
			t.screen.SetContent(t.titleCol+i, t.titleRow, r, nil, titleStyle)
		}
	}
	t.screen.Show()
}

// cellStyle colours a half-block cell: foreground is the upper pixel,
// background the lower one. Pixels are premultiplied, so they are already
// composited over black.
func cellStyle(img *image.RGBA, x, y int) tcell.Style {
	top := img.RGBAAt(x, y*2)
	bottom := img.RGBAAt(x, y*2+1)
	return tcell.StyleDefault.
		Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
		Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
}

func (t *Term) screenshot() {
	img := t.renderer.Image()
	if img == nil {
		return
	}
	path, err := t.shots.CaptureImage(img)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("path", path))
}

// Overlay returns the driven overlay.
func (t *Term) Overlay() *overlay.Overlay {
	return t.overlay
}

// Close disposes the overlay and restores the terminal.
func (t *Term) Close() {
	if t.overlay != nil {
		t.overlay.Dispose()
	}
	if t.cue != nil {
		t.cue.Close()
	}
	t.screen.Fini()
}
