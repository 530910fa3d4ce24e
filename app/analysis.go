// Turns raw comment text into structured insights via the OpenAI chat
// completions API.

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/NemoPS/youtube-comments-analyzer/app/config"
	"github.com/NemoPS/youtube-comments-analyzer/app/models"

	openai "github.com/sashabaranov/go-openai"
)

var errEmptyCompletion = errors.New("no response from model")

const analysisSystemPrompt = "You are a helpful assistant, very good at understanding " +
	"people's problems from video comments. Respond with ONLY a JSON object of the form " +
	`{"pain_points":[{"topic":"...","description":"..."}],"discussed_topics":[{"topic":"...","description":"..."}]} ` +
	"with exactly 3 items in each array. No code block, no prose, just the JSON object."

// commentInsights is the schema the model is asked to produce.
type commentInsights struct {
	PainPoints      []models.Insight `json:"pain_points"`
	DiscussedTopics []models.Insight `json:"discussed_topics"`
}

// analyzeComments sends the comments to the LLM and parses the reply.
func analyzeComments(ctx context.Context, cfg *config.Config, comments []string) (commentInsights, error) {
	if cfg.OpenAI.APIKey == "" {
		return commentInsights{}, errors.New("OPENAI_API_KEY not configured")
	}

	client := openai.NewClient(cfg.OpenAI.APIKey)

	llmCtx, cancel := context.WithTimeout(ctx, cfg.OpenAI.Timeout)
	defer cancel()

	resp, err := client.CreateChatCompletion(llmCtx, openai.ChatCompletionRequest{
		Model: cfg.OpenAI.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: analysisSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: "Identify the 3 biggest pain points and the 3 most discussed topics " +
					"in the following comments:\n" + strings.Join(comments, "\n"),
			},
		},
	})
	if err != nil {
		return commentInsights{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return commentInsights{}, errEmptyCompletion
	}

	return parseInsights(resp.Choices[0].Message.Content)
}

// parseInsights validates the model output against the expected schema.
// On failure it returns the empty value alongside the error so callers that
// want the old silent-degradation behavior still get a usable zero result.
func parseInsights(raw string) (commentInsights, error) {
	cleaned := stripCodeFence(raw)

	var insights commentInsights
	if err := json.Unmarshal([]byte(cleaned), &insights); err != nil {
		return commentInsights{}, fmt.Errorf("malformed model output: %w", err)
	}
	if len(insights.PainPoints) == 0 && len(insights.DiscussedTopics) == 0 {
		return commentInsights{}, errors.New("model output missing insights")
	}
	for _, in := range append(insights.PainPoints, insights.DiscussedTopics...) {
		if strings.TrimSpace(in.Topic) == "" {
			return commentInsights{}, errors.New("model output has empty topic")
		}
	}
	return insights, nil
}

// stripCodeFence removes a ```json ... ``` wrapper, which the model sometimes
// adds despite the prompt.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
