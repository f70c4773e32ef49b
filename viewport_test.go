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
	"testing"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// recordingTool counts the events it receives.
type recordingTool struct {
	active            bool
	presses, releases int
	fail              error
}

func (r *recordingTool) Activate() error {
	if r.fail != nil {
		return r.fail
	}
	r.active = true
	return nil
}
func (r *recordingTool) Deactivate()          { r.active = false }
func (r *recordingTool) Press(PointerEvent)   { r.presses++ }
func (r *recordingTool) Move(PointerEvent)    {}
func (r *recordingTool) Release(PointerEvent) { r.releases++ }
func (r *recordingTool) KeyPress(Key)         {}

func TestViewportTools(t *testing.T) {
	v := NewViewport(nil, 1, nil)
	a, b := &recordingTool{}, &recordingTool{}
	if err := v.SetTool(a); err != nil {
		t.Fatal(err)
	}
	v.Click(geom.Point{}, LeftButton)
	if a.presses != 1 || a.releases != 1 {
		t.Errorf("events: %+v", a)
	}
	v.SetTool(b)
	if a.active || !b.active || v.Tool() != Tool(b) {
		t.Error("setting a tool should deactivate the previous one")
	}
	v.UnsetTool(a)
	if v.Tool() != Tool(b) {
		t.Error("unsetting a tool that is not current should do nothing")
	}
	v.UnsetTool(b)
	if b.active || v.Tool() != nil {
		t.Error("unset failed")
	}
	v.Click(geom.Point{}, LeftButton)
	if b.presses != 0 {
		t.Error("events reached an unset tool")
	}
}

func TestViewportPreviews(t *testing.T) {
	v := NewViewport(nil, 1, nil)
	v.SetPreview("a", geom.Point{X: 1, Y: 1})
	v.SetPreview("b", geom.Point{X: 2, Y: 2})
	v.SetPreview("a", geom.Point{X: 3, Y: 3})
	if v.NumPreviews() != 2 {
		t.Errorf("have %d previews, want 2", v.NumPreviews())
	}
	if g, _ := v.Preview("a"); !g.Similar(geom.Point{X: 3, Y: 3}, 0) {
		t.Errorf("preview a: %v", g)
	}
	v.SetPreview("b", nil)
	v.ClearPreview("a")
	if v.NumPreviews() != 0 {
		t.Errorf("have %d previews, want 0", v.NumPreviews())
	}
}

func TestViewportActiveLayer(t *testing.T) {
	a, b := NewMemLayer("a", LineGeometry, nil), NewMemLayer("b", LineGeometry, nil)
	v := NewViewport(nil, 1, nil, a, b)
	if v.ActiveLayer() != Layer(a) || len(v.Layers()) != 2 {
		t.Error("the first layer should be active")
	}
	v.SetActiveLayer(b)
	if v.ActiveLayer() != Layer(b) {
		t.Error("SetActiveLayer failed")
	}
}

func TestLogMessenger(t *testing.T) {
	m := NewLogMessenger()
	if _, ok := m.Last(); ok {
		t.Error("a new messenger has no messages")
	}
	m.Info("a", "1")
	m.Warning("b", "2")
	m.Error("c", "3")
	if len(m.Messages) != 3 {
		t.Fatalf("have %d messages", len(m.Messages))
	}
	if last, _ := m.Last(); last.Level != logrus.ErrorLevel || last.Title != "c" {
		t.Errorf("last: %+v", last)
	}
	if !m.Confirm("q", "?") {
		t.Error("the default answer is yes")
	}
	if len(m.Messages) != 3 {
		t.Error("prompts are not recorded as messages")
	}
}
