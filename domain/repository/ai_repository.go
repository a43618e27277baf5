package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Songmu/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/soclab/quell/domain/entity"
)

type AIRepositorier interface {
	SummarizeIncident(incident *entity.Incident, timeline string) (string, error)
	GenerateRootCause(incident *entity.Incident, timeline string) (string, error)
	GenerateFollowUps(incident *entity.Incident, timeline string) (string, error)
	PrepareTimelineForReport(entries []entity.AuditEntry) (string, error)
}

type AIRepository struct {
	client     *openai.Client
	model      string
	calculator *TokenCalculator
}

// NewAIRepository returns nil without error when no API key is configured;
// report generation then falls back to the raw timeline.
func NewAIRepository() (*AIRepository, error) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("AZURE_OPENAI_KEY") == "" {
		return nil, nil
	}

	var model = "gpt-4"
	if os.Getenv("OPENAI_MODEL") != "" {
		model = os.Getenv("OPENAI_MODEL")
	}
	client, err := newOpenAIClient()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	calculator, err := NewTokenCalculator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token calculator: %w", err)
	}
	return &AIRepository{
		client:     client,
		model:      model,
		calculator: calculator,
	}, nil
}

func newOpenAIClient() (*openai.Client, error) {
	if os.Getenv("AZURE_OPENAI_ENDPOINT") != "" {
		return newAzureClient()
	}

	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	options := []option.RequestOption{
		option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
	}

	c := openai.NewClient(options...)
	return &c, nil
}

func newAzureClient() (*openai.Client, error) {
	key := os.Getenv("AZURE_OPENAI_KEY")
	if key == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_KEY is not set")
	}
	var azureOpenAIEndpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")

	var azureOpenAIAPIVersion = "2025-01-01-preview"

	if os.Getenv("AZURE_OPENAI_API_VERSION") != "" {
		azureOpenAIAPIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
	}

	c := openai.NewClient(
		azure.WithEndpoint(azureOpenAIEndpoint, azureOpenAIAPIVersion),
		azure.WithAPIKey(key),
	)
	return &c, nil
}

func (h *AIRepository) SummarizeIncident(incident *entity.Incident, timeline string) (string, error) {
	prompt := fmt.Sprintf(`## Task
Write the narrative summary section of a post-incident report.
You are given the incident record and its audit timeline.

## Format
At most 500 words of plain prose. Return only the summary text; it is
embedded verbatim into a report template, so no headings and no markdown.

## Incident
Category: %s
Affected asset: %s
Severity: %s
Status: %s

## Audit timeline
%s`, incident.Category, incident.Asset, incident.Severity, incident.Status, timeline)

	return h.callOpenAIWithRetry(prompt)
}

func (h *AIRepository) GenerateRootCause(incident *entity.Incident, timeline string) (string, error) {
	prompt := fmt.Sprintf(`## Task
From the audit timeline of a security incident, describe the most likely
root cause and initial attack vector.

## Format
At most 200 words. If the timeline does not contain enough information,
answer exactly: "Insufficient data; complete manually."
Return only the text, no headings and no markdown.

## Incident
Category: %s
Affected asset: %s

## Audit timeline
%s`, incident.Category, incident.Asset, timeline)

	return h.callOpenAIWithRetry(prompt)
}

func (h *AIRepository) GenerateFollowUps(incident *entity.Incident, timeline string) (string, error) {
	prompt := fmt.Sprintf(`## Task
From the audit timeline of a security incident, list concrete follow-up
actions for the responders (hardening, detection gaps, cleanup).

## Format
A markdown bullet list, at most 8 items. Only list actions supported by the
timeline; do not invent work that has no basis in the data.

## Incident
Category: %s
Affected asset: %s
Severity: %s

## Audit timeline
%s`, incident.Category, incident.Asset, incident.Severity, timeline)

	return h.callOpenAIWithRetry(prompt)
}

// PrepareTimelineForReport flattens the audit entries into prompt text.
// Timelines over the token budget are summarized chunk by chunk and merged,
// so the report prompts always fit the model context.
func (h *AIRepository) PrepareTimelineForReport(entries []entity.AuditEntry) (string, error) {
	maxTokens := GetMaxTokens()
	full := h.calculator.FormatEntries(entries)
	if h.calculator.CountTokens(full) <= maxTokens {
		return full, nil
	}

	chunks := h.calculator.SplitEntries(entries, maxTokens)
	var summaries []string
	for i, chunk := range chunks {
		prompt := fmt.Sprintf(`## Task
Condense this part (%d/%d) of a security incident audit timeline.
Keep every action, target, outcome and timestamp that matters; drop noise.

## Timeline part
%s`, i+1, len(chunks), h.calculator.FormatEntries(chunk))
		summary, err := h.callOpenAIWithRetry(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to condense timeline chunk %d: %w", i+1, err)
		}
		summaries = append(summaries, summary)
	}

	if len(summaries) == 1 {
		return summaries[0], nil
	}
	return h.callOpenAIWithRetry(h.calculator.CreateMergePrompt(summaries))
}

func (h *AIRepository) callOpenAIWithRetry(prompt string) (string, error) {
	var result string
	err := retry.Retry(3, time.Second*3, func() error {
		resp, err := h.client.Chat.Completions.New(context.Background(), openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: h.model,
		})
		if err != nil {
			if strings.Contains(err.Error(), "token") || strings.Contains(err.Error(), "length") {
				return fmt.Errorf("token_limit_exceeded: %w", err)
			}
			return err
		}

		if len(resp.Choices) == 0 {
			return fmt.Errorf("no response from OpenAI")
		}

		result = resp.Choices[0].Message.Content
		return nil
	})

	return result, err
}
