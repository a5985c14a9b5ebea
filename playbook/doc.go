// Package playbook assembles ready-to-use coordination setups for a software
// development team of agents from a declarative YAML configuration.
//
// A playbook has up to four parts: a router that sends a task to the best
// agent, a research-plan-code-review-test pipeline, a parallel review and a
// supervised workflow. Default returns the built-in configuration; Load and
// Parse read one from YAML. Build resolves agents from a core.Registry and
// wires the patterns.
package playbook
