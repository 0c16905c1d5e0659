package sessionkit

import (
	"context"

	internalaudit "github.com/vital-labs/sessionkit/internal/audit"
)

const (
	auditEventSignInSuccess   = "signin_success"
	auditEventSignInFailure   = "signin_failure"
	auditEventRegisterSuccess = "register_success"
	auditEventRegisterFailure = "register_failure"
	auditEventResumeSuccess   = "resume_success"
	auditEventResumeFailure   = "resume_failure"
	auditEventSignOut         = "signout"
	auditEventForcedSignOut   = "forced_signout"
)

// emitAudit forwards a lifecycle event to the dispatcher. metaFn is lazy so
// disabled audit pays no allocation for metadata maps.
func (c *Controller) emitAudit(ctx context.Context, eventType string, success bool, userID string, err error, metaFn func() map[string]string) {
	if c == nil || c.audit == nil {
		return
	}
	event := internalaudit.Event{
		Timestamp: c.clock(),
		EventType: eventType,
		UserID:    userID,
		Phase:     c.State().Phase.String(),
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}
	c.audit.Emit(ctx, event)
}
