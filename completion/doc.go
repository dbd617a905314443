// Package completion defines the Completer interface the gateway uses to
// talk to a text-completion backend, plus the structured BackendError
// failures share. Concrete adapters live in sub-packages:
//
//   - completion/ollama: a local Ollama server's /api/generate endpoint
//   - completion/openai: the OpenAI Chat Completions API
//   - completion/anthropic: the Anthropic Messages API
//
// Adapters accept a fixed optional system instruction, a model identifier
// and a bounded output-token budget, and return the trimmed completion text.
// Credentials are read from the process environment by the SDKs and are
// never logged.
package completion
