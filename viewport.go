/*
Copyright © 2025 the RMCGeo authors.
This file is part of RMCGeo.

RMCGeo is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RMCGeo is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RMCGeo.  If not, see <http://www.gnu.org/licenses/>.
*/

package rmcgeo

import (
	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// Message is a notification recorded by LogMessenger.
type Message struct {
	Level       logrus.Level
	Title, Text string
}

// LogMessenger is a Messenger that writes notifications to a logger and
// keeps them for later inspection. Confirmation prompts are answered
// with Answer.
type LogMessenger struct {
	Log      logrus.FieldLogger
	Answer   bool
	Messages []Message
}

// NewLogMessenger returns a messenger that confirms every prompt.
func NewLogMessenger() *LogMessenger {
	return &LogMessenger{Log: logrus.StandardLogger(), Answer: true}
}

func (m *LogMessenger) record(level logrus.Level, title, msg string) {
	m.Messages = append(m.Messages, Message{Level: level, Title: title, Text: msg})
	e := m.Log.WithField("title", title)
	switch level {
	case logrus.ErrorLevel:
		e.Error(msg)
	case logrus.WarnLevel:
		e.Warn(msg)
	default:
		e.Info(msg)
	}
}

// Info implements Messenger.
func (m *LogMessenger) Info(title, msg string) { m.record(logrus.InfoLevel, title, msg) }

// Warning implements Messenger.
func (m *LogMessenger) Warning(title, msg string) { m.record(logrus.WarnLevel, title, msg) }

// Error implements Messenger.
func (m *LogMessenger) Error(title, msg string) { m.record(logrus.ErrorLevel, title, msg) }

// Success implements Messenger.
func (m *LogMessenger) Success(title, msg string) { m.record(logrus.InfoLevel, title, msg) }

// Confirm implements Messenger.
func (m *LogMessenger) Confirm(title, question string) bool {
	m.Log.WithFields(logrus.Fields{"title": title, "answer": m.Answer}).Info(question)
	return m.Answer
}

// Last returns the most recent message, if any.
func (m *LogMessenger) Last() (Message, bool) {
	if len(m.Messages) == 0 {
		return Message{}, false
	}
	return m.Messages[len(m.Messages)-1], true
}

// Viewport is a headless Canvas with a fixed CRS and scale.
type Viewport struct {
	crs           *CRS
	unitsPerPixel float64

	layers []Layer
	active Layer

	previews map[string]geom.Geom
	tool     Tool

	// Refreshes counts repaint requests.
	Refreshes int

	msg Messenger
}

// NewViewport creates a viewport displaying layers in crs, with
// unitsPerPixel map units per screen pixel. The first layer becomes the
// active layer.
func NewViewport(crs *CRS, unitsPerPixel float64, msg Messenger, layers ...Layer) *Viewport {
	if msg == nil {
		msg = NewLogMessenger()
	}
	v := &Viewport{
		crs:           crs,
		unitsPerPixel: unitsPerPixel,
		previews:      make(map[string]geom.Geom),
		msg:           msg,
	}
	for _, l := range layers {
		v.AddLayer(l)
	}
	return v
}

// CRS implements Canvas.
func (v *Viewport) CRS() *CRS { return v.crs }

// MapUnitsPerPixel implements Canvas.
func (v *Viewport) MapUnitsPerPixel() float64 { return v.unitsPerPixel }

// ActiveLayer implements Canvas.
func (v *Viewport) ActiveLayer() Layer { return v.active }

// SetActiveLayer makes l the active layer.
func (v *Viewport) SetActiveLayer(l Layer) { v.active = l }

// Layers implements Canvas.
func (v *Viewport) Layers() []Layer { return append([]Layer(nil), v.layers...) }

// AddLayer implements Canvas.
func (v *Viewport) AddLayer(l Layer) {
	v.layers = append(v.layers, l)
	if v.active == nil {
		v.active = l
	}
}

// SetPreview implements Canvas.
func (v *Viewport) SetPreview(name string, g geom.Geom) {
	if g == nil {
		delete(v.previews, name)
		return
	}
	v.previews[name] = g
}

// ClearPreview implements Canvas.
func (v *Viewport) ClearPreview(name string) { delete(v.previews, name) }

// Preview returns the preview geometry named name.
func (v *Viewport) Preview(name string) (geom.Geom, bool) {
	g, ok := v.previews[name]
	return g, ok
}

// NumPreviews returns the number of visible preview geometries.
func (v *Viewport) NumPreviews() int { return len(v.previews) }

// Refresh implements Canvas.
func (v *Viewport) Refresh() { v.Refreshes++ }

// Messenger implements Canvas.
func (v *Viewport) Messenger() Messenger { return v.msg }

// SetTool activates t and makes it the current tool, deactivating any
// previous tool. If t fails to activate, no tool is current.
func (v *Viewport) SetTool(t Tool) error {
	if v.tool != nil {
		v.tool.Deactivate()
		v.tool = nil
	}
	if err := t.Activate(); err != nil {
		return err
	}
	v.tool = t
	return nil
}

// Tool returns the current tool.
func (v *Viewport) Tool() Tool { return v.tool }

// UnsetTool implements Canvas.
func (v *Viewport) UnsetTool(t Tool) {
	if v.tool == t && t != nil {
		v.tool = nil
		t.Deactivate()
	}
}

// Press forwards a button press to the current tool.
func (v *Viewport) Press(e PointerEvent) {
	if v.tool != nil {
		v.tool.Press(e)
	}
}

// Move forwards a pointer move to the current tool.
func (v *Viewport) Move(e PointerEvent) {
	if v.tool != nil {
		v.tool.Move(e)
	}
}

// Release forwards a button release to the current tool.
func (v *Viewport) Release(e PointerEvent) {
	if v.tool != nil {
		v.tool.Release(e)
	}
}

// Click moves the pointer to p and presses and releases button.
func (v *Viewport) Click(p geom.Point, button Button) {
	v.Move(PointerEvent{Pos: p})
	v.Press(PointerEvent{Pos: p, Button: button})
	v.Release(PointerEvent{Pos: p, Button: button})
}
