package testutil

import (
	"net/http"

	"rollbook/pkg/requestcontext"
)

// AsCaller stamps the request context with an authenticated caller address,
// simulating what the auth middleware does for real requests.
func AsCaller(req *http.Request, address string) *http.Request {
	ctx := requestcontext.WithCallerAddress(req.Context(), address)
	return req.WithContext(ctx)
}
