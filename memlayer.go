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
	"github.com/ctessum/geom/index/rtree"
	"github.com/sirupsen/logrus"
)

// memState is the committed or buffered content of a MemLayer.
type memState struct {
	features []*Feature
	fields   []Field
	nextID   int64
}

func (s *memState) clone() *memState {
	o := &memState{
		features: make([]*Feature, len(s.features)),
		fields:   make([]Field, len(s.fields)),
		nextID:   s.nextID,
	}
	for i, f := range s.features {
		o.features[i] = f.clone()
	}
	copy(o.fields, s.fields)
	return o
}

// MemLayer is an in-memory Layer with an R-tree spatial index and an edit
// buffer. Edits are only accepted between StartEditing and CommitChanges
// or RollBack.
type MemLayer struct {
	name  string
	gType GeometryType
	crs   *CRS

	// PrimaryKey holds the names of the primary key fields.
	PrimaryKey []string

	state    *memState
	snapshot *memState // committed state while editing

	index      *rtree.Rtree
	indexDirty bool

	Log logrus.FieldLogger
}

// NewMemLayer creates an empty layer.
func NewMemLayer(name string, t GeometryType, crs *CRS, fields ...Field) *MemLayer {
	l := &MemLayer{
		name:  name,
		gType: t,
		crs:   crs,
		state: &memState{fields: append([]Field(nil), fields...), nextID: 1},
		Log:   logrus.StandardLogger(),
	}
	l.indexDirty = true
	return l
}

// Name implements Layer.
func (l *MemLayer) Name() string { return l.name }

// GeometryType implements Layer.
func (l *MemLayer) GeometryType() GeometryType { return l.gType }

// CRS implements Layer.
func (l *MemLayer) CRS() *CRS { return l.crs }

// Load adds features to the committed state of the layer regardless of
// its edit status, assigning new IDs. It is meant for populating layers
// from files.
func (l *MemLayer) Load(features ...*Feature) error {
	for _, f := range features {
		if t := GeometryTypeOf(f.Geom); t != l.gType {
			return fmt.Errorf("rmcgeo: layer %s: cannot load %v geometry into %v layer", l.name, t, l.gType)
		}
		id := l.insert(l.state, f)
		if l.snapshot != nil {
			nf := f.clone()
			nf.ID = id
			l.snapshot.features = append(l.snapshot.features, nf)
			if l.snapshot.nextID <= id {
				l.snapshot.nextID = id + 1
			}
		}
	}
	return nil
}

func (l *MemLayer) insert(s *memState, f *Feature) int64 {
	nf := f.clone()
	nf.ID = s.nextID
	s.nextID++
	s.features = append(s.features, nf)
	l.indexDirty = true
	return nf.ID
}

// indexEntry is the R-tree item for one feature.
type indexEntry struct {
	geom.Geom
	id int64
}

func (l *MemLayer) buildIndex() {
	if !l.indexDirty {
		return
	}
	l.index = rtree.NewTree(25, 50)
	for _, f := range l.state.features {
		if f.Geom != nil {
			l.index.Insert(indexEntry{Geom: f.Geom, id: f.ID})
		}
	}
	l.indexDirty = false
}

// FeaturesInBounds implements Layer. Features are returned in ID order.
func (l *MemLayer) FeaturesInBounds(b *geom.Bounds) []*Feature {
	l.buildIndex()
	found := make(map[int64]bool)
	for _, s := range l.index.SearchIntersect(b) {
		found[s.(indexEntry).id] = true
	}
	var o []*Feature
	for _, f := range l.state.features {
		if found[f.ID] {
			o = append(o, f)
		}
	}
	return o
}

// Features implements Layer.
func (l *MemLayer) Features() []*Feature {
	return append([]*Feature(nil), l.state.features...)
}

// Feature implements Layer.
func (l *MemLayer) Feature(id int64) (*Feature, bool) {
	i := l.featureIndex(id)
	if i < 0 {
		return nil, false
	}
	return l.state.features[i], true
}

func (l *MemLayer) featureIndex(id int64) int {
	for i, f := range l.state.features {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// IsEditable implements Layer.
func (l *MemLayer) IsEditable() bool { return l.snapshot != nil }

// StartEditing implements Layer.
func (l *MemLayer) StartEditing() bool {
	if l.snapshot == nil {
		l.snapshot = l.state.clone()
		l.Log.WithField("layer", l.name).Debug("started editing")
	}
	return true
}

// CommitChanges implements Layer.
func (l *MemLayer) CommitChanges() error {
	if l.snapshot == nil {
		return fmt.Errorf("rmcgeo: layer %s is not in edit mode", l.name)
	}
	l.snapshot = nil
	l.Log.WithField("layer", l.name).Debug("committed changes")
	return nil
}

// RollBack implements Layer. It discards every change made since
// StartEditing, including added fields, and ends the edit session.
func (l *MemLayer) RollBack() {
	if l.snapshot == nil {
		return
	}
	l.state = l.snapshot
	l.snapshot = nil
	l.indexDirty = true
	l.Log.WithField("layer", l.name).Debug("rolled back changes")
}

// ChangeGeometry implements Layer.
func (l *MemLayer) ChangeGeometry(id int64, g geom.Geom) bool {
	if !l.IsEditable() || g == nil {
		return false
	}
	i := l.featureIndex(id)
	if i < 0 {
		return false
	}
	f := l.state.features[i].clone()
	f.Geom = g
	l.state.features[i] = f
	l.indexDirty = true
	return true
}

// AddFeature implements Layer. Attributes that do not match a field are
// dropped.
func (l *MemLayer) AddFeature(f *Feature) (int64, bool) {
	if !l.IsEditable() || f.Geom == nil || GeometryTypeOf(f.Geom) != l.gType {
		return 0, false
	}
	nf := &Feature{Geom: f.Geom, Attributes: make(map[string]interface{})}
	for k, v := range f.Attributes {
		if i := l.FieldIndex(k); i >= 0 {
			nf.Attributes[l.state.fields[i].Name] = v
		}
	}
	return l.insert(l.state, nf), true
}

// ChangeAttributeValue implements Layer.
func (l *MemLayer) ChangeAttributeValue(id int64, field string, v interface{}) bool {
	fi := l.FieldIndex(field)
	if !l.IsEditable() || fi < 0 {
		return false
	}
	i := l.featureIndex(id)
	if i < 0 {
		return false
	}
	f := l.state.features[i].clone()
	f.Attributes[l.state.fields[fi].Name] = v
	l.state.features[i] = f
	return true
}

// AddField implements Layer.
func (l *MemLayer) AddField(f Field) bool {
	if !l.IsEditable() || f.Name == "" || l.FieldIndex(f.Name) >= 0 {
		return false
	}
	l.state.fields = append(l.state.fields, f)
	return true
}

// DeleteField implements Layer.
func (l *MemLayer) DeleteField(name string) bool {
	i := l.FieldIndex(name)
	if !l.IsEditable() || i < 0 {
		return false
	}
	name = l.state.fields[i].Name
	l.state.fields = append(l.state.fields[:i:i], l.state.fields[i+1:]...)
	for j, f := range l.state.features {
		if _, ok := f.Attributes[name]; ok {
			nf := f.clone()
			delete(nf.Attributes, name)
			l.state.features[j] = nf
		}
	}
	return true
}

// Fields implements Layer.
func (l *MemLayer) Fields() []Field { return append([]Field(nil), l.state.fields...) }

// FieldIndex implements Layer. Field names are matched case-insensitively.
func (l *MemLayer) FieldIndex(name string) int {
	for i, f := range l.state.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// PrimaryKeyIndices implements Layer.
func (l *MemLayer) PrimaryKeyIndices() []int {
	var o []int
	for _, n := range l.PrimaryKey {
		if i := l.FieldIndex(n); i >= 0 {
			o = append(o, i)
		}
	}
	return o
}

// UpdateExtents implements Layer.
func (l *MemLayer) UpdateExtents() { l.buildIndex() }

// Extent returns the bounding box of all features.
func (l *MemLayer) Extent() *geom.Bounds {
	b := geom.NewBounds()
	for _, f := range l.state.features {
		if f.Geom != nil {
			b.Extend(f.Geom.Bounds())
		}
	}
	return b
}
