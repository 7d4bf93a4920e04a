package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/resilience"
)

const maxContentAttempts = 3

// MalformedResponseError reports an external response that never produced
// valid, schema-conforming JSON within the content retry budget. It is a
// distinct error kind so callers can test for it separately from transport
// failures.
type MalformedResponseError struct {
	Op  Operation
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("reasoning: %s returned malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Executor runs one reasoning operation end to end: resolve parameters,
// gate the call through the dependency's resilience client, parse the
// strictly-typed JSON reply, and retry content failures with corrective
// feedback. Transport retries belong to the resilience layer, not here.
type Executor struct {
	caller   Caller
	registry *Registry
	client   *resilience.Client
	log      zerolog.Logger
}

func NewExecutor(caller Caller, registry *Registry, client *resilience.Client, log zerolog.Logger) *Executor {
	return &Executor{caller: caller, registry: registry, client: client, log: log}
}

// RunJSON decodes the operation's reply into out and runs validate over it.
// The returned usage covers every attempt, including failed ones.
func (e *Executor) RunJSON(ctx context.Context, op Operation, system, user string, out any, validate func() error) (Usage, error) {
	params, err := e.registry.Lookup(op)
	if err != nil {
		return Usage{}, err
	}

	var total Usage
	feedback := ""
	var lastRaw string
	var lastErr error
	for attempt := 1; attempt <= maxContentAttempts; attempt++ {
		prompt := user + "\n\nRespond with only valid JSON matching the schema."
		if feedback != "" {
			prompt += "\n\n" + feedback
		}

		var resp Response
		callErr := e.client.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, params.Timeout)
			defer cancel()
			var err error
			resp, err = e.caller.Generate(callCtx, params, system, prompt)
			return err
		})
		total.InputTokens += resp.Usage.InputTokens
		total.OutputTokens += resp.Usage.OutputTokens
		if callErr != nil {
			return total, fmt.Errorf("reasoning: %s call failed: %w", op, callErr)
		}

		raw := strings.TrimSpace(resp.Text)
		if raw == "" {
			lastRaw, lastErr = raw, fmt.Errorf("empty response")
			feedback = "Your previous response was empty. Respond with valid JSON."
			continue
		}
		clean := stripCodeFences(raw)
		// A rejected attempt must not leak fields into the next decode.
		zeroTarget(out)
		if err := json.Unmarshal([]byte(clean), out); err != nil {
			lastRaw, lastErr = raw, err
			feedback = "Your previous response was not valid JSON. Respond with only valid JSON."
			e.log.Debug().Str("operation", string(op)).Int("attempt", attempt).Msg("malformed JSON from reasoning service")
			continue
		}
		if err := validate(); err != nil {
			lastRaw, lastErr = raw, err
			feedback = fmt.Sprintf("Your response failed validation: %s. Fix these issues.", err)
			continue
		}
		return total, nil
	}
	return total, &MalformedResponseError{Op: op, Raw: lastRaw, Err: lastErr}
}

// RunText is the soft variant used for narrative generation: no schema, the
// trimmed text is returned as-is.
func (e *Executor) RunText(ctx context.Context, op Operation, system, user string) (string, Usage, error) {
	params, err := e.registry.Lookup(op)
	if err != nil {
		return "", Usage{}, err
	}
	var resp Response
	callErr := e.client.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, params.Timeout)
		defer cancel()
		var err error
		resp, err = e.caller.Generate(callCtx, params, system, user)
		return err
	})
	if callErr != nil {
		return "", resp.Usage, fmt.Errorf("reasoning: %s call failed: %w", op, callErr)
	}
	return strings.TrimSpace(resp.Text), resp.Usage, nil
}

// zeroTarget resets the pointed-to value so json.Unmarshal starts from a
// clean struct on every attempt.
func zeroTarget(out any) {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	v.Elem().Set(reflect.Zero(v.Elem().Type()))
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
