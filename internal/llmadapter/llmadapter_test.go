package llmadapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/immagent/internal/llmadapter"
	"github.com/ashita-ai/immagent/internal/model"
)

type transientError struct{ msg string }

func (e *transientError) Error() string   { return e.msg }
func (e *transientError) Temporary() bool { return true }

type permanentError struct{ msg string }

func (e *permanentError) Error() string { return e.msg }

type stubProvider struct {
	failures int
	calls    int
	err      error
}

func (p *stubProvider) Complete(ctx context.Context, req llmadapter.Request) (model.Message, error) {
	p.calls++
	if p.calls <= p.failures {
		return model.Message{}, p.err
	}
	content := "ok"
	return model.AssistantMessage(&content, nil, nil, nil), nil
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	provider := &stubProvider{failures: 2, err: &transientError{msg: "rate limited"}}
	client := llmadapter.New(provider, llmadapter.Config{MaxRetries: 3, PerAttemptTime: time.Second, BaseDelay: time.Millisecond})

	msg, err := client.Complete(context.Background(), llmadapter.Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, "ok", *msg.Content)
}

func TestCompleteDoesNotRetryPermanentFailures(t *testing.T) {
	provider := &stubProvider{failures: 99, err: &permanentError{msg: "bad request"}}
	client := llmadapter.New(provider, llmadapter.Config{MaxRetries: 3, PerAttemptTime: time.Second, BaseDelay: time.Millisecond})

	_, err := client.Complete(context.Background(), llmadapter.Request{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestCompleteExhaustsRetriesAndReturnsError(t *testing.T) {
	provider := &stubProvider{failures: 99, err: &transientError{msg: "still failing"}}
	client := llmadapter.New(provider, llmadapter.Config{MaxRetries: 2, PerAttemptTime: time.Second, BaseDelay: time.Millisecond})

	_, err := client.Complete(context.Background(), llmadapter.Request{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, 3, provider.calls)
	var te *transientError
	assert.True(t, errors.As(err, &te))
}
