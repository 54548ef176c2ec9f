// Package entries implements timing entry CRUD with a bounded undo/redo log.
//
// Every function takes the current State by value and returns a new one.
// Input slices are never written to: additions append onto clipped slices,
// removals filter into fresh ones. This lets the engine hand out snapshots
// while later operations run, and makes undo/redo a matter of swapping
// stacks rather than copying state.
//
// Each forward operation pushes an Action onto the undo stack and clears the
// redo stack. Actions are a closed sum type: AddAction, DeleteAction,
// DeleteMultipleAction, ClearAllAction and UpdateAction. Each carries
// exactly the entries needed to invert and re-apply itself.
//
// Round trip: for every action kind Redo(Undo(s)) restores s, provided
// entries were added in timestamp order (reinsertion sorts by timestamp).
package entries
