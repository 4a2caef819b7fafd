// Package conversation holds the utterance model consumed by evidence
// collection, plus the default ingestion adapter for assistant JSONL
// transcripts.
//
// The adapter reads files such as ~/.claude/projects/<project>/<session>.jsonl,
// keeps user and assistant turns, and records file paths passed to tools so
// that corrections can be tagged with the file type they were about.
package conversation
