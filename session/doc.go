// Package session records completed runs. A Record captures the task, the
// coordinating agent and its final result so callers can inspect past runs
// by id or by project.
//
// Add durable backends in sub-packages implementing Store; only the wiring
// layer needs to decide which implementation to instantiate.
package session
