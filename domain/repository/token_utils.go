package repository

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/soclab/quell/domain/entity"
)

const (
	// default budget, sized for large-context models
	DefaultMaxTokens = 200000
)

// GetMaxTokens reads the prompt token budget from the environment, falling
// back to the default.
func GetMaxTokens() int {
	if envMaxTokens := os.Getenv("MAX_TOKENS"); envMaxTokens != "" {
		if maxTokens, err := strconv.Atoi(envMaxTokens); err == nil && maxTokens > 0 {
			return maxTokens
		}
	}
	return DefaultMaxTokens
}

type TokenCalculator struct {
	encoder *tiktoken.Tiktoken
}

func NewTokenCalculator() (*TokenCalculator, error) {
	encoder, err := tiktoken.EncodingForModel("gpt-4")
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding for GPT-4: %w", err)
	}

	return &TokenCalculator{
		encoder: encoder,
	}, nil
}

func (tc *TokenCalculator) CountTokens(text string) int {
	if tc.encoder == nil {
		// fallback: chars / 4
		return len(text) / 4
	}

	tokens := tc.encoder.Encode(text, nil, nil)
	return len(tokens)
}

// FormatEntry renders one audit entry as a timeline line.
func (tc *TokenCalculator) FormatEntry(entry entity.AuditEntry) string {
	line := fmt.Sprintf("%s [%s] %s",
		entry.CreatedAt.Format("2006-01-02 15:04:05"),
		entry.Event,
		entry.Actor)
	if entry.Action != "" {
		line += fmt.Sprintf(" action=%s target=%s outcome=%s", entry.Action, entry.Target, entry.Outcome)
	}
	if entry.Detail != "" {
		line += " " + entry.Detail
	}
	return line
}

func (tc *TokenCalculator) FormatEntries(entries []entity.AuditEntry) string {
	var builder strings.Builder
	for _, entry := range entries {
		builder.WriteString(tc.FormatEntry(entry))
		builder.WriteString("\n")
	}
	return builder.String()
}

// SplitEntries chunks the timeline so each chunk stays within the budget.
func (tc *TokenCalculator) SplitEntries(entries []entity.AuditEntry, maxTokens int) [][]entity.AuditEntry {
	if len(entries) == 0 {
		return [][]entity.AuditEntry{}
	}

	var chunks [][]entity.AuditEntry
	var currentChunk []entity.AuditEntry
	currentTokens := 0

	for _, entry := range entries {
		entryTokens := tc.CountTokens(tc.FormatEntry(entry))

		if currentTokens+entryTokens > maxTokens && len(currentChunk) > 0 {
			chunks = append(chunks, currentChunk)
			currentChunk = []entity.AuditEntry{entry}
			currentTokens = entryTokens
		} else {
			currentChunk = append(currentChunk, entry)
			currentTokens += entryTokens
		}
	}

	if len(currentChunk) > 0 {
		chunks = append(chunks, currentChunk)
	}

	return chunks
}

// CreateMergePrompt asks the model to unify partial timeline summaries.
func (tc *TokenCalculator) CreateMergePrompt(summaries []string) string {
	var builder strings.Builder
	builder.WriteString("The following are partial summaries of one security incident audit timeline. Merge them into a single chronological summary, removing duplicates:\n\n")

	for i, summary := range summaries {
		builder.WriteString(fmt.Sprintf("## Part %d\n%s\n\n", i+1, summary))
	}

	builder.WriteString("Return the merged timeline summary only.")

	return builder.String()
}
