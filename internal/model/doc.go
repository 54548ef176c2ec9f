// Package model provides the record types shared by every racelog package.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal. This keeps the record types
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Records are values. Engines copy, never mutate, the slices they receive.
//   - JSON tags use camelCase because the same documents are exchanged with
//     other devices and the cloud backend.
//   - Entry.Run defaults to 1 when absent (records written before runs existed).
//   - Fault.VersionHistory holds at most MaxVersionHistory items, oldest first.
package model
