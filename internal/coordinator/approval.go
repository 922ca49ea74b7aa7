package coordinator

import (
	"context"
	"errors"

	"github.com/kingrea/loom/internal/hook"
)

// ApprovalCapability is the well-known name of the human-in-the-loop
// confirmation capability.
const ApprovalCapability = "approval.request"

// DenyNoApproval is the reason returned when approval is requested but no
// approval system is registered. Denying here is a hard-coded fail-safe, not
// configurable per module.
const DenyNoApproval = "No approval system available"

// RequestApproval asks the registered approval capability to confirm action
// on behalf of caller. With no approval capability present the request fails
// closed. A timed-out request resolves to the configured default action. The
// approval implementation reports its verdict either as a bool or as a map
// with "approved" (bool) and optional "reason" (string) keys.
func (c *Coordinator) RequestApproval(ctx context.Context, caller, action string, details map[string]any) hook.Result {
	impl, ok := c.GetCapability(ApprovalCapability, caller)
	if !ok {
		c.logf("coordinator: approval denied for %s (%s): no approval capability registered", action, caller)
		return hook.Deny(DenyNoApproval)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.approvalTimeout)
	defer cancel()
	args := map[string]any{"action": action, "caller": caller}
	for key, value := range details {
		if key == "action" || key == "caller" {
			continue
		}
		args[key] = value
	}
	// The capability runs in its own goroutine so an implementation that never
	// reads ctx still cannot block the request past the deadline. An abandoned
	// implementation may finish later; its verdict is discarded.
	type outcome struct {
		verdict any
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		verdict, err := impl(ctx, args)
		done <- outcome{verdict: verdict, err: err}
	}()
	var verdict any
	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return c.approvalTimedOut(caller, action)
			}
			c.logf("coordinator: approval for %s (%s) failed: %v", action, caller, out.err)
			return hook.Deny(out.err.Error())
		}
		verdict = out.verdict
	case <-ctx.Done():
		return c.approvalTimedOut(caller, action)
	}
	approved, reason := approvalVerdict(verdict)
	if approved {
		return hook.Continue()
	}
	if reason == "" {
		reason = "approval denied"
	}
	return hook.Deny(reason)
}

func (c *Coordinator) approvalTimedOut(caller, action string) hook.Result {
	if c.approvalTimeoutAction == hook.KindContinue {
		c.logf("coordinator: approval for %s (%s) timed out; continuing per configured default", action, caller)
		return hook.Continue()
	}
	c.logf("coordinator: approval for %s (%s) timed out; denying per configured default", action, caller)
	return hook.Deny("approval request timed out")
}

func approvalVerdict(verdict any) (bool, string) {
	switch v := verdict.(type) {
	case bool:
		return v, ""
	case map[string]any:
		approved, _ := v["approved"].(bool)
		reason, _ := v["reason"].(string)
		return approved, reason
	}
	return false, "approval capability returned an unrecognized verdict"
}
