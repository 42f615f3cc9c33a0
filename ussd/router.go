// Package ussd adapts the field-check core to the USSD gateway protocol.
// The gateway resends the entire accumulated input string on every request
// within one call, so the router re-derives its position from input depth
// instead of trusting stored state; replaying the same accumulated string
// always produces the same response.
package ussd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmensah/fieldcheck/auth"
	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/dispatch"
	"github.com/jmensah/fieldcheck/ratelimit"
	"github.com/jmensah/fieldcheck/session"
)

// DefaultTTL bounds one USSD call's attribution record. Gateways cut calls
// well before this; the TTL only guards against a gateway that never sends
// the final request.
const DefaultTTL = 180 * time.Second

// Request is one gateway webhook delivery.
type Request struct {
	SessionID string
	Phone     string
	Text      string // accumulated "*"-joined input
}

// Response is the plain-text reply. Terminal responses render with the
// "END" prefix and close the gateway session; prompts render with "CON".
type Response struct {
	Body     string
	Terminal bool
}

// Render produces the gateway wire form.
func (r Response) Render() string {
	if r.Terminal {
		return "END " + r.Body
	}
	return "CON " + r.Body
}

// position is the router's derived place in the call, keyed purely by
// input-segment count.
type position interface{ isPosition() }

type posMainMenu struct{}

type posFeatureChosen struct{ choice string }

type posPINEntered struct{ choice, pin string }

type posCompleted struct{ choice, pin, term string }

func (posMainMenu) isPosition()      {}
func (posFeatureChosen) isPosition() {}
func (posPINEntered) isPosition()    {}
func (posCompleted) isPosition()     {}

// classify maps the accumulated input string to a position. With three or
// more segments the last one is the search term; intermediate extras are
// gateway artifacts and ignored.
func classify(text string) position {
	text = strings.TrimSpace(text)
	if text == "" {
		return posMainMenu{}
	}
	segs := strings.Split(text, "*")
	switch len(segs) {
	case 1:
		return posFeatureChosen{choice: segs[0]}
	case 2:
		return posPINEntered{choice: segs[0], pin: segs[1]}
	default:
		return posCompleted{choice: segs[0], pin: segs[1], term: segs[len(segs)-1]}
	}
}

// Router drives one USSD call through menu, PIN and query execution.
type Router struct {
	auth       *auth.Authenticator
	limiter    *ratelimit.Limiter
	dispatcher *dispatch.Dispatcher
	store      session.Store
	ttl        time.Duration
	logger     *slog.Logger
}

// NewRouter creates a USSD router. A zero ttl means DefaultTTL.
func NewRouter(a *auth.Authenticator, l *ratelimit.Limiter, d *dispatch.Dispatcher, store session.Store, ttl time.Duration, logger *slog.Logger) *Router {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{auth: a, limiter: l, dispatcher: d, store: store, ttl: ttl, logger: logger}
}

// Handle processes one gateway request and returns the next prompt or the
// terminal result.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	switch pos := classify(req.Text).(type) {
	case posMainMenu:
		return Response{Body: menuText}

	case posFeatureChosen:
		if _, ok := session.QueryTypeFromChoice(pos.choice); !ok {
			return r.terminate(req, msgInvalidChoice)
		}
		return Response{Body: msgPINPrompt}

	case posPINEntered:
		qt, ok := session.QueryTypeFromChoice(pos.choice)
		if !ok {
			return r.terminate(req, msgInvalidChoice)
		}
		officer, denied := r.authenticate(req, pos.pin)
		if denied != nil {
			return *denied
		}
		if !qt.NeedsSearchTerm() {
			return r.execute(ctx, req, officer, qt, "")
		}
		r.saveAttribution(req, officer.ID, qt)
		return Response{Body: qt.SearchPrompt()}

	case posCompleted:
		qt, ok := session.QueryTypeFromChoice(pos.choice)
		if !ok {
			return r.terminate(req, msgInvalidChoice)
		}
		officer, denied := r.authenticate(req, pos.pin)
		if denied != nil {
			return *denied
		}
		term := pos.term
		if !qt.NeedsSearchTerm() {
			term = ""
		}
		return r.execute(ctx, req, officer, qt, term)

	default:
		return r.terminate(req, msgInternalError)
	}
}

// authenticate resolves the caller and verifies the PIN. A failed PIN ends
// the whole call: there is no in-call retry, the officer must dial again,
// which issues a fresh gateway session.
func (r *Router) authenticate(req Request, pin string) (*directory.Officer, *Response) {
	o, err := r.auth.Identify(req.Phone, session.ChannelUSSD)
	if err != nil {
		resp := r.terminate(req, msgNotEnrolled)
		return nil, &resp
	}
	if ok, _ := r.auth.VerifyPIN(o, pin, session.ChannelUSSD); !ok {
		resp := r.terminate(req, msgInvalidPIN)
		return nil, &resp
	}
	return o, nil
}

// execute runs the rate-limit gate and the query, always terminating the
// call. Rate-limited attempts are refused before dispatch so they never
// consume quota.
func (r *Router) execute(ctx context.Context, req Request, o *directory.Officer, qt session.QueryType, term string) Response {
	decision, err := r.limiter.Check(o)
	if err != nil {
		r.logger.Error("rate limit check failed", "officer_id", o.ID, "error", err)
	}
	if !decision.Allowed {
		return r.terminate(req, rateLimitMessage(decision))
	}
	res := r.dispatcher.Dispatch(ctx, o.ID, qt, term, session.ChannelUSSD)
	return r.terminate(req, renderResult(res))
}

// saveAttribution persists the in-flight call's identity so audit tooling
// can attribute the session by gateway ID. The record carries no
// navigation authority; position always comes from the input string.
func (r *Router) saveAttribution(req Request, officerID string, qt session.QueryType) {
	s := session.New(req.SessionID, session.ChannelUSSD, r.ttl)
	s.State = session.StateAwaitingSearch
	s.OfficerID = officerID
	s.QueryType = qt
	r.store.Save(req.SessionID, s, r.ttl)
}

// terminate builds the END response and unconditionally drops the
// attribution record for this gateway session.
func (r *Router) terminate(req Request, body string) Response {
	r.store.Delete(req.SessionID)
	return Response{Body: body, Terminal: true}
}

func rateLimitMessage(d ratelimit.Decision) string {
	return fmt.Sprintf("Daily query limit reached (%d/%d). Resets at %s.",
		d.Limit, d.Limit, d.ResetAt.Format("15:04"))
}
