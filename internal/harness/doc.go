// Package harness runs scripted scenarios against a real engine.
//
// A scenario is a YAML file naming a sequence of engine operations with
// their arguments. Each scenario runs against a fresh in-memory SQLite
// store with deterministic ids ("id-1", "id-2", ...) and a fake clock
// that advances one second per reading, so the trace it produces is
// reproducible and can be compared against a golden file.
//
// The trace records, per step:
//
//	invocation  the operation and its arguments
//	change      one event per published snapshot, with the dirty slices
//	completion  the operation's result
//
// A step that changes nothing produces no change event.
//
// Assertions run after the last step:
//
//	trace_contains  an invocation of op whose args include the given subset
//	trace_order     invocations appear in the given relative order
//	trace_count     op was invoked exactly count times
//	final_state     a dotted path into the final state equals a value or
//	                has a length
//
// Golden files live in testdata/golden/{name}.golden; regenerate them with
//
//	go test ./internal/harness -update
package harness
