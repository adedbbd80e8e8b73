package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagMode       = flag.String("mode", "", "Host: sdl, term or headless")
	flagTicks      = flag.Int("ticks", 0, "Headless: stop after this many ticks")
	flagDismiss    = flag.Int("dismiss-after", 0, "Headless: dismiss at this tick")
	flagSnapshot   = flag.String("snapshot", "", "Headless: write the last frame to this PNG")
	flagMesh       = flag.String("mesh", "", "Mesh: sphere or cube")
	flagSegments   = flag.Int("segments", 0, "Sphere segment count")
	flagTransition = flag.String("transition", "", "Transition policy: pixelate or spin-zoom")
	flagScene      = flag.String("scene", "", "Scene description file (YAML)")
	flagParticles  = flag.Int("particles", -1, "Particle count")
	flagFlat       = flag.Bool("flat", false, "Draw the flat animated fill instead of the mesh")
	flagMute       = flag.Bool("mute", false, "Disable the dismiss sound")
	flagSave       = flag.Bool("save-config", false, "Write the effective config to the config directory and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// SaveRequested reports whether --save-config was given.
func SaveRequested() bool {
	return *flagSave
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagMode != "" {
		cfg.Host.Mode = *flagMode
	}
	if *flagTicks > 0 {
		cfg.Host.Ticks = *flagTicks
	}
	if *flagDismiss > 0 {
		cfg.Host.DismissAfter = *flagDismiss
	}
	if *flagSnapshot != "" {
		cfg.Host.Snapshot = *flagSnapshot
	}
	if *flagMesh != "" {
		cfg.Overlay.Mesh = *flagMesh
	}
	if *flagSegments > 0 {
		cfg.Overlay.Segments = *flagSegments
	}
	if *flagTransition != "" {
		cfg.Transition.Policy = *flagTransition
	}
	if *flagScene != "" {
		cfg.Overlay.SceneFile = *flagScene
	}
	if *flagParticles >= 0 {
		cfg.Overlay.Particles = *flagParticles
	}
	if *flagFlat {
		cfg.Overlay.Flat = true
	}
	if *flagMute {
		cfg.Audio.Enabled = false
	}
}
