// Package distance provides the distance kernel shared by every codec
// component.
//
// # Usage
//
//	d := distance.SquaredL2(a, b)
//	n := distance.Norm(v)
//	unit, ok := distance.NormalizeL2Copy(v)
//
// Length mismatches are programming errors and panic. Public codec entry
// points validate shapes first and report typed errors instead.
package distance
