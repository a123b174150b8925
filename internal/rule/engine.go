package rule

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"molock/internal/catalog"
	"molock/internal/telemetry"
)

// ErrNoResponse is returned when no candidate matches and the endpoint has
// no default response.
var ErrNoResponse = errors.New("rule: no matching response and no default")

// ErrNoProbability is returned when weighted selection must run but every
// candidate's probability is zero (T = 0).
var ErrNoProbability = errors.New("rule: candidate probabilities sum to zero")

// Counter is the subset of state.Store the engine depends on, so tests can
// substitute a fake without importing the state package.
type Counter interface {
	Increment(key string) uint64
	Get(key string) (uint64, bool)
}

// Selection is the outcome of response selection: the triple the dispatcher
// writes to the wire, plus whether the endpoint is stateful (which gates
// the X-Request-Count header) and the counter value observed.
type Selection struct {
	Status       int
	Body         string
	Headers      map[string]string
	Stateful     bool
	RequestCount uint64
}

// Engine selects and materializes a response for a matched endpoint.
type Engine struct {
	counter Counter
	rng     *rand.Rand
	rngMu   sync.Mutex
	logger  *zap.Logger
}

// NewEngine builds an Engine backed by the given counter store. logger may
// be nil, in which case warnings are discarded; molockd serve wires in the
// process-wide zap logger so permissive-condition and delay warnings (§4.3)
// carry the active span's trace/span IDs via telemetry.WithSpan (§4.4).
func NewEngine(counter Counter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		counter: counter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger,
	}
}

// Select runs the full pipeline for a matched endpoint: state key
// resolution and counting, candidate filtering, weighted selection, delay,
// and templating. inboundRequestID is the inbound "x-request-id" header
// value, if any.
func (e *Engine) Select(ctx context.Context, ep *catalog.Endpoint, reqCtx *RequestContext, inboundRequestID string) (*Selection, error) {
	var requestCount uint64
	stateful := ep.Stateful

	if stateful {
		key := e.stateKey(ep, reqCtx)
		if key == "" {
			// An empty resolved state key is treated as non-stateful for
			// this request: no counter is touched, no count header is set.
			stateful = false
		} else {
			requestCount = e.counter.Increment(key)
		}
	}

	resp, err := e.selectResponse(ctx, ep, requestCount)
	if err != nil {
		return nil, err
	}

	e.applyDelay(ctx, resp)

	status := resp.Status
	if status < 100 || status > 599 {
		status = 500
	}

	body := renderTemplate(resp.Body, reqCtx, requestCount)
	headers := e.composeHeaders(resp, reqCtx, requestCount, stateful, inboundRequestID)

	return &Selection{
		Status:       status,
		Body:         body,
		Headers:      headers,
		Stateful:     stateful,
		RequestCount: requestCount,
	}, nil
}

// stateKey resolves the per-request counter key per §4.3: the literal
// "client_ip" (or an unset state_key) resolves to the caller's IP; any
// other state_key names a request header, matched case-insensitively,
// whose value is used as the key; if that header is absent, the key falls
// back to the client IP.
func (e *Engine) stateKey(ep *catalog.Endpoint, reqCtx *RequestContext) string {
	key := ep.StateKey
	if key == "" || strings.EqualFold(key, "client_ip") {
		return reqCtx.ClientIP
	}
	if reqCtx.Headers != nil {
		if v := reqCtx.Headers.Get(key); v != "" {
			return v
		}
	}
	return reqCtx.ClientIP
}

// selectResponse filters candidates by condition then applies the
// selection rule from §4.3. The default response is not a candidate; it is
// returned only when no other response matches.
func (e *Engine) selectResponse(ctx context.Context, ep *catalog.Endpoint, requestCount uint64) (*catalog.Response, error) {
	var candidates []*catalog.Response
	var defaultResp *catalog.Response

	for i := range ep.Responses {
		r := &ep.Responses[i]
		if r.Default {
			defaultResp = r
			continue
		}
		ok, permissive := evaluateCondition(r.Condition, requestCount)
		if permissive {
			telemetry.WithSpan(ctx, e.logger).Warn("rule: unrecognized condition treated as permissive true",
				zap.String("endpoint", ep.Name),
				zap.Int("response_index", i),
				zap.String("condition", r.Condition),
			)
		}
		if ok {
			candidates = append(candidates, r)
		}
	}

	switch len(candidates) {
	case 0:
		if defaultResp != nil {
			return defaultResp, nil
		}
		return nil, ErrNoResponse
	case 1:
		return candidates[0], nil
	default:
		return e.weightedSelect(candidates)
	}
}

// weightedSelect draws among candidates by their probability weight
// (unset treated as 0), returning the first candidate whose cumulative
// weight exceeds the draw. The final candidate is returned whenever the
// loop reaches it, so floating-point rounding of the running sum never
// skips it.
func (e *Engine) weightedSelect(candidates []*catalog.Response) (*catalog.Response, error) {
	var total float64
	for _, c := range candidates {
		if c.Probability != nil {
			total += *c.Probability
		}
	}
	if total == 0 {
		return nil, ErrNoProbability
	}

	e.rngMu.Lock()
	r := e.rng.Float64() * total
	e.rngMu.Unlock()

	var cumulative float64
	for i, c := range candidates {
		weight := 0.0
		if c.Probability != nil {
			weight = *c.Probability
		}
		cumulative += weight
		if r < cumulative || i == len(candidates)-1 {
			return c, nil
		}
	}
	return candidates[len(candidates)-1], nil
}

// applyDelay sleeps for the response's configured delay, if any. Parse
// failures at request time (defensive; load-time validation should have
// already caught them) skip the delay rather than fail the request.
func (e *Engine) applyDelay(ctx context.Context, resp *catalog.Response) {
	if resp.Delay == "" {
		return
	}
	min, max, err := catalog.ParseDelay(resp.Delay)
	if err != nil {
		telemetry.WithSpan(ctx, e.logger).Warn("rule: skipping delay, failed to parse at request time",
			zap.String("delay", resp.Delay),
			zap.Error(err),
		)
		return
	}

	wait := min
	if max > min {
		e.rngMu.Lock()
		wait = min + e.rng.Float64()*(max-min)
		e.rngMu.Unlock()
	}
	time.Sleep(time.Duration(wait * float64(time.Millisecond)))
}

// composeHeaders merges the response's templated headers with the
// dispatcher-owned X-Request-ID / X-Request-Count headers.
func (e *Engine) composeHeaders(resp *catalog.Response, reqCtx *RequestContext, requestCount uint64, stateful bool, inboundRequestID string) map[string]string {
	headers := renderHeaders(resp.Headers, reqCtx, requestCount)
	if headers == nil {
		headers = make(map[string]string, 2)
	}

	if inboundRequestID != "" {
		headers["X-Request-ID"] = inboundRequestID
	} else {
		headers["X-Request-ID"] = uuid.New().String()
	}

	if stateful {
		headers["X-Request-Count"] = strconv.FormatUint(requestCount, 10)
	}

	return headers
}
