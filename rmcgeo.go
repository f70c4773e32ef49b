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

// Package rmcgeo implements the geometry-editing core of the RMCGeo
// toolset: hit-testing of line features near a cursor, extension of lines
// to their extended intersection (chamfer), mouse-side extension to a target
// line, parallel offsets with automatic UTM reprojection, azimuth and bearing
// traverses, and table-driven attribute calculators.
//
// The host GIS is abstracted behind the Canvas, Layer and Messenger
// interfaces. MemLayer and Viewport are in-memory implementations used by the
// command-line interface and by the tests.
package rmcgeo

// Version gives the version number.
const Version = "1.4.0"
