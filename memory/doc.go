// Package memory keeps knowledge across runs of the same project: a key/value
// state that seeds AgentContext.SharedState and a log of remembered outputs
// that can be searched by keyword.
//
// Depend on the Store interface; select an implementation (like the in-memory
// store below) at wiring time. Vector or embedding backed stores fit behind the
// same interface.
package memory
