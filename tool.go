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

import "github.com/ctessum/geom"

// Button identifies a pointer button.
type Button int

// Pointer buttons.
const (
	NoButton Button = iota
	LeftButton
	RightButton
)

// PointerEvent is a pointer press, move or release at Pos, in the canvas
// CRS.
type PointerEvent struct {
	Pos    geom.Point
	Button Button
}

// Key identifies a keyboard key delivered to a tool.
type Key int

// Keys handled by the tools.
const (
	KeyOther Key = iota
	KeyEscape
)

// Tool is an interactive map tool driven by pointer events.
type Tool interface {
	// Activate prepares the tool for use. An error means the tool's
	// preconditions are not met and it must not become current.
	Activate() error
	// Deactivate clears the tool's session and previews.
	Deactivate()
	Press(e PointerEvent)
	Move(e PointerEvent)
	Release(e PointerEvent)
	KeyPress(k Key)
}

// Preview names shared by the tools.
const (
	hoverPreview  = "hover"
	firstPreview  = "first"
	resultPreview = "result"
	pointPreview  = "point"
)
