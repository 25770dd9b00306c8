package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/shared"
)

// ErrDegraded signals that the gateway rejected a call because the model
// is considered unavailable. Callers switch to scripted behavior instead
// of failing the turn.
var ErrDegraded = shared.NewDomainError("MODEL_DEGRADED", "Language model is degraded")

// Gateway is the single path for all model traffic. Every call passes the
// injected circuit breaker and runs under the configured timeout; a
// timeout counts as a failure toward opening the breaker.
type Gateway struct {
	client  ModelClient
	breaker CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// NewGateway creates a gateway around a model client. The breaker is
// injected so deployments can share or isolate breakers as they need.
func NewGateway(client ModelClient, breaker CircuitBreaker, timeout time.Duration, logger *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Gateway{
		client:  client,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
	}
}

// Complete generates a free-text chat completion
func (g *Gateway) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var out string
	err := g.call(ctx, "complete", func(cctx context.Context) error {
		var err error
		out, err = g.client.ChatCompletion(cctx, messages, nil)
		return err
	})
	return out, err
}

// CompleteJSON generates a completion constrained to a strict JSON schema
// and returns the raw JSON payload
func (g *Gateway) CompleteJSON(ctx context.Context, messages []ChatMessage, schemaName string, schema json.RawMessage) ([]byte, error) {
	var out string
	err := g.call(ctx, "complete_json", func(cctx context.Context) error {
		var err error
		out, err = g.client.ChatCompletion(cctx, messages, NewJSONSchemaFormat(schemaName, schema))
		return err
	})
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Embed computes the embedding vector for a text
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := g.call(ctx, "embed", func(cctx context.Context) error {
		var err error
		out, err = g.client.Embedding(cctx, text)
		return err
	})
	return out, err
}

// State exposes the breaker state for health reporting
func (g *Gateway) State() BreakerState {
	return g.breaker.State()
}

// call runs one model call through the breaker with the gateway timeout
func (g *Gateway) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if !g.breaker.Allow() {
		g.logger.Warn("model call rejected, gateway degraded",
			zap.String("operation", op),
			zap.String("breaker_state", string(g.breaker.State())))
		return ErrDegraded
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := fn(cctx)
	if err != nil {
		// A canceled caller is not a model fault and must not trip the
		// breaker; timeouts and upstream errors are.
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return fmt.Errorf("model %s aborted: %w", op, err)
		}
		g.breaker.RecordFailure()
		g.logger.Warn("model call failed",
			zap.String("operation", op),
			zap.String("breaker_state", string(g.breaker.State())),
			zap.Error(err))
		return fmt.Errorf("model %s failed: %w", op, err)
	}

	g.breaker.RecordSuccess()
	return nil
}
