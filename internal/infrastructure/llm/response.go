package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ProspectScanner/internal/ports"
)

var (
	errEmptyChoices = errors.New("completion has no choices")
	errUnknownShape = errors.New("unrecognised completion payload")
)

// completion is the closed set of response bodies an OpenAI-compatible endpoint may return.
// Every variant is normalised once, here, into ports.ChatResponse.
type completion interface {
	normalize() (ports.ChatResponse, error)
}

// standardCompletion is the OpenAI chat.completions shape, also used by DeepSeek.
type standardCompletion struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c standardCompletion) normalize() (ports.ChatResponse, error) {
	if len(c.Choices) == 0 {
		return ports.ChatResponse{}, errEmptyChoices
	}
	first := c.Choices[0]
	return ports.ChatResponse{
		ID:           c.ID,
		Model:        c.Model,
		Text:         strings.TrimSpace(first.Message.Content),
		FinishReason: first.FinishReason,
		Usage: ports.TokenUsage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
		},
	}, nil
}

// alternateCompletion is the flat {"response": "..."} body some DeepSeek deployments return.
type alternateCompletion struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

func (c alternateCompletion) normalize() (ports.ChatResponse, error) {
	return ports.ChatResponse{
		Model:        c.Model,
		Text:         strings.TrimSpace(c.Response),
		FinishReason: "stop",
	}, nil
}

// errorCompletion carries a provider error delivered with a 2xx status.
type errorCompletion struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c errorCompletion) normalize() (ports.ChatResponse, error) {
	return ports.ChatResponse{}, fmt.Errorf("provider error %s: %s", c.Error.Type, c.Error.Message)
}

// decodeCompletion picks the variant by the top-level keys present in raw.
func decodeCompletion(raw []byte) (completion, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	var (
		target completion
		err    error
	)
	switch {
	case probe["error"] != nil && string(probe["error"]) != "null":
		var c errorCompletion
		err = json.Unmarshal(raw, &c)
		target = c
	case probe["choices"] != nil:
		var c standardCompletion
		err = json.Unmarshal(raw, &c)
		target = c
	case probe["response"] != nil:
		var c alternateCompletion
		err = json.Unmarshal(raw, &c)
		target = c
	default:
		return nil, errUnknownShape
	}
	if err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	return target, nil
}
