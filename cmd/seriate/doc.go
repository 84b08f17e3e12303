// Command seriate builds and inspects the podcast series catalog: it ingests
// the RSS feed, groups episodes into narrative series, enriches them through
// a cached LLM pass, and publishes deterministic JSON artifacts.
package main
