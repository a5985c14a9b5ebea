// Package model defines the provider-agnostic abstractions used by
// model-backed workers to talk to language models.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, FunctionCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (see the anthropic and openai subpackages) implement Model so
// workers remain decoupled from vendor SDKs.
package model
