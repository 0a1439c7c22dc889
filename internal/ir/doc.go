// Package ir defines the data representation shared by the scene compiler,
// the engine and the trace store.
//
// This package contains type definitions and canonical encoding only. All
// other internal packages may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Scenes carry float64 values; anything hashed goes through canonical
//     JSON, where numbers are quantized to fixed-point integers
//   - All JSON tags use snake_case
//   - Trace records are ordered by step index, never by wall-clock time
package ir
