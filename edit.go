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
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// RequireEditable warns through c and returns false if l is not in an
// edit session.
func RequireEditable(c Canvas, l Layer) bool {
	if l == nil {
		return false
	}
	if !l.IsEditable() {
		c.Messenger().Warning("Edit mode", fmt.Sprintf("Enable editing on layer %s before using this tool.", l.Name()))
		return false
	}
	return true
}

// UpdateGeometry replaces the geometry of feature id in l. It fails
// without side effects unless l is editable. On success the layer extents
// are updated and the canvas is refreshed.
func UpdateGeometry(c Canvas, l Layer, id int64, g geom.Geom) bool {
	if l == nil || g == nil || !RequireEditable(c, l) {
		return false
	}
	if !l.ChangeGeometry(id, g) {
		return false
	}
	l.UpdateExtents()
	c.Refresh()
	return true
}

// InsertFeature adds f to l under the same conditions as UpdateGeometry.
func InsertFeature(c Canvas, l Layer, f *Feature) (int64, bool) {
	if l == nil || f == nil || !RequireEditable(c, l) {
		return 0, false
	}
	id, ok := l.AddFeature(f)
	if !ok {
		return 0, false
	}
	l.UpdateExtents()
	c.Refresh()
	return id, true
}

// attrChange is an undo record for one attribute write.
type attrChange struct {
	id    int64
	field string
	old   interface{}
}

// EditSession groups attribute and schema changes to a layer so that they
// can be undone together. If the layer was not being edited when the
// session began, the session owns the layer's edit buffer: Commit commits
// it and Rollback discards it. Otherwise the session undoes only its own
// changes and leaves the surrounding edit session open.
type EditSession struct {
	layer      Layer
	wasEditing bool

	fields  []string
	changes []attrChange
	done    bool

	Log logrus.FieldLogger
}

// BeginEdit starts an EditSession on l.
func BeginEdit(l Layer) (*EditSession, error) {
	s := &EditSession{layer: l, wasEditing: l.IsEditable(), Log: logrus.StandardLogger()}
	if !s.wasEditing && !l.StartEditing() {
		return nil, fmt.Errorf("rmcgeo: cannot start editing layer %s", l.Name())
	}
	return s, nil
}

// WasEditing returns whether the layer was already in an edit session.
func (s *EditSession) WasEditing() bool { return s.wasEditing }

// AddField creates field f.
func (s *EditSession) AddField(f Field) error {
	if !s.layer.AddField(f) {
		return fmt.Errorf("rmcgeo: cannot create field %s on layer %s", f.Name, s.layer.Name())
	}
	s.fields = append(s.fields, f.Name)
	return nil
}

// SetAttribute writes v to field of feature id.
func (s *EditSession) SetAttribute(id int64, field string, v interface{}) error {
	var old interface{}
	if f, ok := s.layer.Feature(id); ok {
		old = attribute(f, field)
	}
	if !s.layer.ChangeAttributeValue(id, field, v) {
		return fmt.Errorf("rmcgeo: cannot set %s of feature %d on layer %s", field, id, s.layer.Name())
	}
	s.changes = append(s.changes, attrChange{id: id, field: field, old: old})
	return nil
}

// Commit makes the changes permanent if the session owns the edit buffer.
func (s *EditSession) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.wasEditing {
		return nil
	}
	return s.layer.CommitChanges()
}

// Rollback undoes every change made through s.
func (s *EditSession) Rollback() {
	if s.done {
		return
	}
	s.done = true
	if !s.wasEditing {
		s.layer.RollBack()
		return
	}
	for i := len(s.changes) - 1; i >= 0; i-- {
		c := s.changes[i]
		if !s.layer.ChangeAttributeValue(c.id, c.field, c.old) {
			s.Log.WithFields(logrus.Fields{"layer": s.layer.Name(), "feature": c.id, "field": c.field}).
				Warn("could not restore attribute value")
		}
	}
	for i := len(s.fields) - 1; i >= 0; i-- {
		if !s.layer.DeleteField(s.fields[i]) {
			s.Log.WithFields(logrus.Fields{"layer": s.layer.Name(), "field": s.fields[i]}).
				Warn("could not remove created field")
		}
	}
}

// attribute returns the value of field in f, matching the field name
// case-insensitively.
func attribute(f *Feature, field string) interface{} {
	if v, ok := f.Attributes[field]; ok {
		return v
	}
	for k, v := range f.Attributes {
		if strings.EqualFold(k, field) {
			return v
		}
	}
	return nil
}
