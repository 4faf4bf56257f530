// Package display models what the status screen shows. The display task
// builds a Frame from the latest snapshot; a Renderer collaborator turns
// it into pixels (or log lines on a headless host). Pixel drawing itself
// is out of scope here.
package display

import (
	"fmt"

	"go.uber.org/zap"
)

// Frame is one rendered status screen.
type Frame struct {
	Title string

	// Connectivity glyphs in the top corner.
	WifiUp bool
	MQTTUp bool

	Angle    float64
	RangeMsg string

	// TempLine/HumLine carry either the formatted values or the
	// "reading" placeholders before the first valid sample.
	TempLine string
	HumLine  string

	// AlertBlink toggles every display cycle while alerting.
	AlertBlink bool

	// Tasks is the footer task counter.
	Tasks int
}

// Renderer draws one frame. Implementations own the display hardware.
type Renderer interface {
	Render(f Frame) error
}

// LogRenderer writes frames to the logger; the headless stand-in used in
// development and when no panel is attached.
type LogRenderer struct {
	Log *zap.Logger
}

func (r *LogRenderer) Render(f Frame) error {
	glyphs := ""
	if f.WifiUp {
		glyphs += "W"
	}
	if f.MQTTUp {
		glyphs += "M"
	}
	r.Log.Debug("frame",
		zap.String("title", f.Title),
		zap.String("glyphs", glyphs),
		zap.String("angle", fmt.Sprintf("%.1f", f.Angle)),
		zap.String("range", f.RangeMsg),
		zap.String("temp", f.TempLine),
		zap.String("hum", f.HumLine),
		zap.Bool("blink", f.AlertBlink),
		zap.Int("tasks", f.Tasks))
	return nil
}
