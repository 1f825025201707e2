package middlewares

import "net/http"

// Middleware decora un http.Handler. chi acepta este tipo en Use/With.
type Middleware func(http.Handler) http.Handler

// Chain(h, A, B) ejecuta A -> B -> h. Los nil se saltean.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
