package erp

import "fmt"

// AuthRejectedError means a protected call was rejected even after one forced
// token refresh. Operators use this to tell "credentials are wrong" apart from
// "ERP is down".
type AuthRejectedError struct {
	TenantID string
	Status   int
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("tenant %s: ERP rejected bearer token after forced refresh (status %d)", e.TenantID, e.Status)
}

// UpstreamError is any other non-2xx ERP response. Business-level retry (rate
// limits and the like) is the caller's decision.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ERP upstream error: status %d: %s", e.Status, e.Body)
}
