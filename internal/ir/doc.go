// Package ir provides the value model shared by every boundary of the engine.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64
//   - Null is a real value (the payload of no-parameter variant cases)
//   - Tagged unions are single-key objects: {"Name": payload}
//   - Clone is the only way values cross the engine boundary, so callers
//     never alias engine-owned storage
package ir
