package middleware

import (
	"net/http"

	"cardadmin/internal/domain/audit"
	"cardadmin/internal/transport/http/shared"
)

// AuditEntry fills actor, request id and client address from the request.
func AuditEntry(r *http.Request, action, entityType, entityID string, after any) audit.Entry {
	user, _ := GetUser(r.Context())
	return audit.Entry{
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
		After:      after,
	}
}
