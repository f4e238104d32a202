// Copyright 2024 The Chainlayer Authors
// This file is part of Chainlayer.
//
// Chainlayer is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Chainlayer is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Chainlayer. If not, see <http://www.gnu.org/licenses/>.

// Package intersect describes where a source adapter should begin
// streaming from.
package intersect

import "github.com/chainlayer/chainlayer/chainevent"

// Kind tags which start policy a Config carries.
type Kind uint8

const (
	Tip Kind = iota
	Origin
	AtPoint
	FromBreadcrumbs
)

// Config is the start policy a source adapter resolves against its chain.
type Config struct {
	Kind   Kind
	Point  chainevent.Point
	Points []chainevent.Point // candidate intersection set, first preferred
}

// AtTip starts at the current chain tip.
func AtTip() Config { return Config{Kind: Tip} }

// AtOrigin starts from genesis.
func AtOrigin() Config { return Config{Kind: Origin} }

// AtFixedPoint starts at one fixed point.
func AtFixedPoint(p chainevent.Point) Config { return Config{Kind: AtPoint, Point: p} }

// FromCandidates starts from a candidate intersection set, first preferred.
func FromCandidates(points []chainevent.Point) Config {
	return Config{Kind: FromBreadcrumbs, Points: points}
}

// Candidates returns the points a source should offer to its counterpart
// as candidate intersections, in preference order.
func (c Config) Candidates() []chainevent.Point {
	switch c.Kind {
	case AtPoint:
		return []chainevent.Point{c.Point}
	case FromBreadcrumbs:
		return c.Points
	case Origin:
		return []chainevent.Point{chainevent.Origin()}
	default:
		return nil
	}
}
