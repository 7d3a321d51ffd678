package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pocotu/oficri-areas/pkg/composables"
	"github.com/pocotu/oficri-areas/pkg/httpapi"
)

// RequireTenantHeader reads the tenant uuid from header and rejects requests
// without a valid one.
func RequireTenantHeader(header string) mux.MiddlewareFunc {
	if strings.TrimSpace(header) == "" {
		header = "X-Tenant-ID"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(header))
			meta := map[string]string{"request_id": composables.UseRequestID(r.Context())}
			if raw == "" {
				_ = httpapi.WriteError(w, http.StatusBadRequest, "TENANT_REQUIRED", header+" header is required", meta)
				return
			}
			tenantID, err := uuid.Parse(raw)
			if err != nil || tenantID == uuid.Nil {
				composables.UseLogger(r.Context()).WithField("tenant", raw).Warn("invalid tenant header")
				_ = httpapi.WriteError(w, http.StatusBadRequest, "TENANT_INVALID", header+" must be a uuid", meta)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), tenantID)))
		})
	}
}
