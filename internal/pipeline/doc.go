// Package pipeline drives the submission intake sequence: preparing, video,
// thumbnail, optional proof-images, and registration, in that fixed order.
//
// The run itself is modeled as a pure state machine (Run, Event, Apply) so
// transition correctness is testable without I/O; the Orchestrator owns the
// side effects, executes stages strictly sequentially, halts on the first
// failure, and feeds stage transitions to a caller-supplied observer. A
// failed run is terminal: a retry is a brand-new run that re-executes every
// stage, including already-uploaded assets.
package pipeline
