// Package rag augments a system prompt with documents retrieved from a
// knowledge base ahead of the first model call.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Result is one retrieved document chunk.
type Result struct {
	Content  string
	Score    float64
	Source   string
	Metadata map[string]string
}

// Retriever fetches ranked document chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query, knowledgeBaseID string, numberOfResults int, category string) ([]Result, error)
}

// Context is the outcome of one augmentation pass.
type Context struct {
	Documents     []Result
	ContextPrompt string
	AverageScore  float64
}

// Options tune a retrieval pass.
type Options struct {
	NumberOfResults int
	Category        string
}

// DefaultNumberOfResults applies when Options leaves the count unset.
const DefaultNumberOfResults = 5

// Augmenter drives retrieval and prompt construction.
type Augmenter struct {
	retriever Retriever
	logger    *slog.Logger
}

// NewAugmenter builds an Augmenter. A nil logger falls back to slog.Default.
func NewAugmenter(retriever Retriever, logger *slog.Logger) *Augmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Augmenter{retriever: retriever, logger: logger}
}

func averageScore(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}

// BuildContextPrompt folds retrieved documents into the system prompt.
// With no documents the prompt passes through unchanged.
func BuildContextPrompt(systemPrompt, query string, results []Result) string {
	if len(results) == 0 {
		return systemPrompt
	}

	sections := make([]string, 0, len(results))
	for i, result := range results {
		filename := result.Metadata["filename"]
		if filename == "" {
			filename = "unknown"
		}
		sections = append(sections, fmt.Sprintf("[Document %d] (relevance: %.3f, source: %s)\n%s",
			i+1, result.Score, filename, result.Content))
	}

	return fmt.Sprintf(`%s

## Retrieved Knowledge Base Documents
Average relevance score: %.3f

%s

## User Query
%s`, systemPrompt, averageScore(results), strings.Join(sections, "\n\n---\n\n"), query)
}

// RetrieveAndBuildContext runs the full pipeline: retrieve documents for
// the query, then fold them into the system prompt. Retrieval errors
// propagate to the caller.
func (a *Augmenter) RetrieveAndBuildContext(ctx context.Context, query, systemPrompt, knowledgeBaseID string, opts Options) (Context, error) {
	n := opts.NumberOfResults
	if n <= 0 {
		n = DefaultNumberOfResults
	}

	documents, err := a.retriever.Retrieve(ctx, query, knowledgeBaseID, n, opts.Category)
	if err != nil {
		return Context{}, err
	}

	preview := query
	if len(preview) > 200 {
		preview = preview[:200]
	}
	a.logger.Info("knowledge base retrieval",
		"query", preview,
		"knowledgeBaseId", knowledgeBaseID,
		"documentsRetrieved", len(documents),
		"averageScore", averageScore(documents))

	return Context{
		Documents:     documents,
		ContextPrompt: BuildContextPrompt(systemPrompt, query, documents),
		AverageScore:  averageScore(documents),
	}, nil
}
