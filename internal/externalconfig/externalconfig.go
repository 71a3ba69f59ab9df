// Package externalconfig defines the thin interface boundary the daemon
// exposes to AI-tool configuration writers. Writing the actual TOML/YAML/
// JSON snippets into each tool's own config file is out of scope for this
// repo; only the shape of that collaboration is defined here.
package externalconfig

import "context"

// Snippet is the fragment an external writer wants merged into one AI
// tool's configuration.
type Snippet struct {
	ToolName string
	Format   string // "toml" | "yaml" | "json"
	Content  string
}

// Writer merges or removes a snippet in one AI tool's own config file. The
// daemon depends only on this interface; concrete writers live outside
// this repo.
type Writer interface {
	Merge(ctx context.Context, snippet Snippet) error
	Remove(ctx context.Context, toolName string) error
}

// NoopWriter is a harmless default implementation, useful for tests and for
// running the daemon with no configured writers.
type NoopWriter struct{}

func (NoopWriter) Merge(ctx context.Context, snippet Snippet) error { return nil }
func (NoopWriter) Remove(ctx context.Context, toolName string) error { return nil }
