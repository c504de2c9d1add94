/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package index

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/retry"
	"chainguard.dev/opensorus/githubapp"
	"chainguard.dev/opensorus/retrieval/selector"
	"github.com/chainguard-dev/clog"
	"golang.org/x/time/rate"
)

// DefaultExtensions are the file types worth indexing.
var DefaultExtensions = []string{".py", ".js", ".ts", ".json", ".md", ".txt"}

// DefaultPacing is the minimum gap between file content fetches.
const DefaultPacing = 100 * time.Millisecond

// ErrNoDocuments is returned when nothing in the repository could be indexed.
var ErrNoDocuments = errors.New("no documents to index")

// Source lists and reads repository files. githubapp.Client implements it.
type Source interface {
	ListFiles(ctx context.Context, owner, repo, ref string) ([]string, error)
	FileContent(ctx context.Context, owner, repo, ref, path string) (string, error)
}

var _ Source = (*githubapp.Client)(nil)

// Builder turns a repository snapshot into a RepoIndex.
type Builder struct {
	source     Source
	selector   selector.Selector
	embedder   llm.Embedder
	extensions []string
	retry      retry.Config
	limiter    *rate.Limiter
	chunkLines int
	overlap    int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder) error

// WithSelector narrows the listing before fetching when a description is given.
func WithSelector(s selector.Selector) BuilderOption {
	return func(b *Builder) error {
		b.selector = s
		return nil
	}
}

// WithExtensions replaces the extension allow-list.
func WithExtensions(exts ...string) BuilderOption {
	return func(b *Builder) error {
		if len(exts) == 0 {
			return errors.New("at least one extension is required")
		}
		b.extensions = exts
		return nil
	}
}

// WithRetryConfig sets the retry policy for file content fetches.
func WithRetryConfig(cfg retry.Config) BuilderOption {
	return func(b *Builder) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		b.retry = cfg
		return nil
	}
}

// WithPacing sets the minimum gap between file content fetches. Zero
// disables pacing.
func WithPacing(d time.Duration) BuilderOption {
	return func(b *Builder) error {
		if d < 0 {
			return errors.New("pacing cannot be negative")
		}
		if d == 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 1)
			return nil
		}
		b.limiter = rate.NewLimiter(rate.Every(d), 1)
		return nil
	}
}

// WithChunking sets the chunk size and overlap in lines.
func WithChunking(lines, overlap int) BuilderOption {
	return func(b *Builder) error {
		if lines <= 0 || overlap < 0 || overlap >= lines {
			return fmt.Errorf("invalid chunking %d/%d", lines, overlap)
		}
		b.chunkLines, b.overlap = lines, overlap
		return nil
	}
}

// NewBuilder creates a Builder reading from source and embedding with embedder.
func NewBuilder(source Source, embedder llm.Embedder, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{
		source:     source,
		embedder:   embedder,
		extensions: DefaultExtensions,
		retry:      retry.ContentFetchConfig(),
		limiter:    rate.NewLimiter(rate.Every(DefaultPacing), 1),
		chunkLines: DefaultChunkLines,
		overlap:    DefaultChunkOverlap,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return b, nil
}

// Build lists the tree at ref, narrows it to the candidates for description,
// fetches and chunks every allowed file, and embeds the chunks. Files that
// cannot be fetched or embedded are skipped; only an index with no documents
// at all is an error.
func (b *Builder) Build(ctx context.Context, owner, repo, ref, description string) (*RepoIndex, error) {
	log := clog.FromContext(ctx).With("repository", owner+"/"+repo).With("ref", ref)

	paths, err := b.source.ListFiles(ctx, owner, repo, ref)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	log.With("files", len(paths)).Info("Indexing repository")

	if description != "" && b.selector != nil {
		if selected, err := b.selector.Select(ctx, description, paths); err != nil {
			log.With("error", err.Error()).Warn("File selection failed, indexing full listing")
		} else {
			paths = selected
		}
	}

	var (
		fetched []fileChunks
		lastErr error
	)
	for _, p := range paths {
		if !b.allowed(p) {
			continue
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		content, err := retry.Do(ctx, b.retry, "fetch "+p, githubapp.IsQuotaSignal, func(ctx context.Context) (string, error) {
			return b.source.FileContent(ctx, owner, repo, ref, p)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.With("path", p).With("error", err.Error()).Warn("Skipping file")
			lastErr = err
			continue
		}
		fetched = append(fetched, fileChunks{path: p, chunks: SplitLines(p, content, b.chunkLines, b.overlap)})
	}

	if len(fetched) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoDocuments, lastErr)
		}
		return nil, ErrNoDocuments
	}

	files, nodes, err := b.embedFiles(ctx, fetched)
	if err != nil {
		return nil, err
	}
	log.With("documents", len(files)).With("nodes", len(nodes)).Info("Finished indexing")
	return NewRepoIndex(owner, repo, ref, files, nodes), nil
}

func (b *Builder) allowed(p string) bool {
	return slices.Contains(b.extensions, strings.ToLower(path.Ext(p)))
}

type fileChunks struct {
	path   string
	chunks []Chunk
}

// embedFiles embeds every chunk in one pass. If that fails, each file is
// embedded on its own and files that still fail are dropped.
func (b *Builder) embedFiles(ctx context.Context, fetched []fileChunks) ([]string, []Node, error) {
	var (
		files []string
		all   []Chunk
	)
	for _, f := range fetched {
		files = append(files, f.path)
		all = append(all, f.chunks...)
	}
	nodes, err := b.embed(ctx, all)
	if err == nil {
		return files, nodes, nil
	}
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}
	if len(fetched) == 1 {
		return nil, nil, fmt.Errorf("%w: %w", ErrNoDocuments, err)
	}

	log := clog.FromContext(ctx)
	log.With("files", len(fetched)).With("error", err.Error()).Warn("Embedding failed, retrying file by file")
	files, nodes = nil, nil
	lastErr := err
	for _, f := range fetched {
		fn, err := b.embed(ctx, f.chunks)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			log.With("path", f.path).With("error", err.Error()).Warn("Skipping file")
			lastErr = err
			continue
		}
		files = append(files, f.path)
		nodes = append(nodes, fn...)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: %w", ErrNoDocuments, lastErr)
	}
	return files, nodes, nil
}

func (b *Builder) embed(ctx context.Context, chunks []Chunk) ([]Node, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.embeddingText()
	}
	vecs, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors, wanted %d", len(vecs), len(chunks))
	}
	nodes := make([]Node, 0, len(chunks))
	for i, c := range chunks {
		v, ok := selector.Normalize(vecs[i])
		if !ok {
			clog.FromContext(ctx).With("path", c.Path).
				With("start_line", c.StartLine).
				Warn("Skipping chunk with invalid embedding")
			continue
		}
		nodes = append(nodes, Node{Chunk: c, Vector: v})
	}
	return nodes, nil
}
