// Package services defines the shared error taxonomy and context plumbing
// used by every remote-service client and pipeline stage.
//
// Errors produced anywhere in the intake pipeline are tagged with one of the
// exported sentinel markers so the orchestrator can classify a failure into
// the fixed category set (validation, transport, rejection, duplicate,
// contest closed, deadline passed, auth expired, generic) without inspecting
// message text. Classification is the sole source of the recovery action
// shown to the user; callers never invent categories of their own.
package services
