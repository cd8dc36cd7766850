package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/immagent/internal/model"
)

type wireToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func encodeToolCalls(calls []model.ToolCall) (string, error) {
	if len(calls) == 0 {
		return "", nil
	}
	wire := make([]wireToolCall, len(calls))
	for i, c := range calls {
		wire[i] = wireToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("storage/sqlite: encode tool_calls: %w", err)
	}
	return string(b), nil
}

func decodeToolCalls(raw string) ([]model.ToolCall, error) {
	if raw == "" {
		return nil, nil
	}
	var wire []wireToolCall
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("storage/sqlite: decode tool_calls: %w", err)
	}
	calls := make([]model.ToolCall, len(wire))
	for i, w := range wire {
		calls[i] = model.ToolCall{ID: w.ID, Name: w.Name, Arguments: w.Arguments}
	}
	return calls, nil
}

func encodeUUIDs(ids []uuid.UUID) (string, error) {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	b, err := json.Marshal(strs)
	if err != nil {
		return "", fmt.Errorf("storage/sqlite: encode message_ids: %w", err)
	}
	return string(b), nil
}

func decodeUUIDs(raw string) ([]uuid.UUID, error) {
	var strs []string
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &strs); err != nil {
			return nil, fmt.Errorf("storage/sqlite: decode message_ids: %w", err)
		}
	}
	ids := make([]uuid.UUID, len(strs))
	for i, s := range strs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("storage/sqlite: parse message id: %w", err)
		}
		ids[i] = id
	}
	return ids, nil
}

func encodeModelConfig(c model.ModelConfig) (string, error) {
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
		return "", fmt.Errorf("storage/sqlite: encode model_config: %w", err)
	}
	return string(b), nil
}

func decodeModelConfig(raw string) (model.ModelConfig, error) {
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
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &wire); err != nil {
			return model.ModelConfig{}, fmt.Errorf("storage/sqlite: decode model_config: %w", err)
		}
	}
	return model.ModelConfig{
		Temperature: wire.Temperature, TopP: wire.TopP, TopK: wire.TopK, MaxTokens: wire.MaxTokens,
		Stop: wire.Stop, FrequencyPenalty: wire.FrequencyPenalty, PresencePenalty: wire.PresencePenalty,
		Extra: wire.Extra,
	}, nil
}
