// Package llm talks to the OpenAI-compatible chat completion API and runs
// the cached enrichment passes over episodes and series. Every result is
// content-addressed by "<id>:<fingerprint>" so unchanged records never incur
// a second call.
package llm
