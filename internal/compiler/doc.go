// Package compiler turns CUE scene files into ir.Scene values.
//
// A scene file is unified with the embedded #Scene schema, which supplies
// defaults and rejects unknown fields, then walked field by field. Named
// maps (materials, rigidbodies, colliders, actors) keep their declaration
// order, so the compiled scene is deterministic.
//
// Actors are authored either as explicit particles and constraints or
// through a generator:
//
//	actors: {
//		rope: rope: {start: [0, 1, 0], end: [1, 1, 0], segments: 10}
//		sheet: cloth: {size: [1, 1], resolution: [8, 8]}
//		ball: particles: [{position: [0, 2, 0]}]
//	}
//
// Generators expand into explicit particles and constraints; the engine
// never sees them.
package compiler
