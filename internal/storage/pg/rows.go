package pg

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
)

// wireToolCall is the JSON shape tool_calls is stored as inside the
// messages.tool_calls JSONB column.
type wireToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func encodeToolCalls(calls []model.ToolCall) ([]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	wire := make([]wireToolCall, len(calls))
	for i, c := range calls {
		wire[i] = wireToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("storage/pg: encode tool_calls: %w", err)
	}
	return b, nil
}

func decodeToolCalls(raw []byte) ([]model.ToolCall, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wire []wireToolCall
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("storage/pg: decode tool_calls: %w", err)
	}
	calls := make([]model.ToolCall, len(wire))
	for i, w := range wire {
		calls[i] = model.ToolCall{ID: w.ID, Name: w.Name, Arguments: w.Arguments}
	}
	return calls, nil
}

func decodeModelConfig(raw []byte) (model.ModelConfig, error) {
	var wire struct {
		Temperature      *float64       `json:"temperature"`
		TopP             *float64       `json:"top_p"`
		TopK             *int           `json:"top_k"`
		MaxTokens        *int           `json:"max_tokens"`
		Stop             []string       `json:"stop"`
		FrequencyPenalty *float64       `json:"frequency_penalty"`
		PresencePenalty  *float64       `json:"presence_penalty"`
		Extra            map[string]any `json:"extra"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &wire); err != nil {
			return model.ModelConfig{}, fmt.Errorf("storage/pg: decode model_config: %w", err)
		}
	}
	return model.ModelConfig{
		Temperature: wire.Temperature, TopP: wire.TopP, TopK: wire.TopK, MaxTokens: wire.MaxTokens,
		Stop: wire.Stop, FrequencyPenalty: wire.FrequencyPenalty, PresencePenalty: wire.PresencePenalty,
		Extra: wire.Extra,
	}, nil
}

func encodeModelConfig(c model.ModelConfig) ([]byte, error) {
	wire := struct {
		Temperature      *float64       `json:"temperature,omitempty"`
		TopP             *float64       `json:"top_p,omitempty"`
		TopK             *int           `json:"top_k,omitempty"`
		MaxTokens        *int           `json:"max_tokens,omitempty"`
		Stop             []string       `json:"stop,omitempty"`
		FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
		PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
		Extra            map[string]any `json:"extra,omitempty"`
	}{
		Temperature: c.Temperature, TopP: c.TopP, TopK: c.TopK, MaxTokens: c.MaxTokens,
		Stop: c.Stop, FrequencyPenalty: c.FrequencyPenalty, PresencePenalty: c.PresencePenalty, Extra: c.Extra,
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("storage/pg: encode model_config: %w", err)
	}
	return b, nil
}

func uuidPtrOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
