package form

import (
	"context"
	"log/slog"
	"sync"

	"github.com/example/carnest-gateway/internal/models"
)

// ResetTransport is the external mutation abstraction for requesting a
// password-reset email. No access token: the flow is anonymous.
type ResetTransport interface {
	ForgotPassword(ctx context.Context, payload models.PasswordResetPayload) models.Result
}

const resetFallbackMessage = "Password reset link sent"

// ResetOutcome reports how one reset attempt ended.
type ResetOutcome struct {
	State    State
	InFlight bool
	Message  string
	Errors   models.ErrorBag
}

// ResetController is the password-reset instance of the submission
// mechanism: same lifecycle and error-bag ownership as Controller, with a
// single-field payload and the success message taken verbatim from the
// server response.
type ResetController struct {
	Transport ResetTransport
	Feedback  *Feedback
	Logger    *slog.Logger

	mu    sync.Mutex
	state State
	bag   models.ErrorBag
}

// Errors returns a copy of the current server error bag.
func (c *ResetController) Errors() models.ErrorBag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bag.Clone()
}

// Submit sends one reset request for the given email. On success the
// server's msg is shown verbatim; on failure the error bag is installed and
// any visible success notice is cleared.
func (c *ResetController) Submit(ctx context.Context, email string) ResetOutcome {
	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		return ResetOutcome{State: Submitting, InFlight: true}
	}
	c.state = Submitting
	c.bag = nil
	c.mu.Unlock()

	res := c.Transport.ForgotPassword(ctx, models.PasswordResetPayload{Email: email})

	c.mu.Lock()
	defer c.mu.Unlock()
	out := ResetOutcome{}
	switch {
	case res.Err != nil:
		c.state = Failed
		if res.Err.Kind == models.KindNetwork {
			c.bag = models.ErrorBag{models.NonFieldErrors: {unreachableMessage}}
		} else {
			c.bag = res.Err.Errors.Clone()
		}
		if c.Feedback != nil {
			c.Feedback.Dismiss()
		}
		out.State = Failed
		out.Errors = c.bag.Clone()
	case res.Data != nil:
		c.state = Succeeded
		c.bag = nil
		msg := resetFallbackMessage
		if m, ok := res.Data["msg"].(string); ok && m != "" {
			msg = m
		}
		if c.Feedback != nil {
			c.Feedback.Show(msg)
		}
		out.State = Succeeded
		out.Message = msg
	default:
		c.state = Failed
		c.bag = models.ErrorBag{models.NonFieldErrors: {malformedMessage}}
		if c.Feedback != nil {
			c.Feedback.Dismiss()
		}
		out.State = Failed
		out.Errors = c.bag.Clone()
	}
	c.state = Idle
	return out
}
