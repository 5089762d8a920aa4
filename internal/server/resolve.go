package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hfi/authproxy/internal/metrics"
	"github.com/hfi/authproxy/internal/resolver"
)

// handleResolve proxies a mapping identifier to its cached or freshly
// fetched upstream response. Unknown identifiers fall through to the
// static handler so the route namespace stays shared with the assets.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	metrics.RequestsTotal.Inc()

	res, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		s.resolveError(w, r, id, err)
		return
	}

	s.audit.LogResolveServed(id, res.Cached)
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	w.Write(res.Body)
}

func (s *Server) resolveError(w http.ResponseWriter, r *http.Request, id string, err error) {
	var statusErr *resolver.UpstreamStatusError

	switch {
	case errors.Is(err, resolver.ErrUnknownMapping):
		s.static.ServeHTTP(w, r)

	case errors.As(err, &statusErr):
		s.audit.LogUpstreamError(id, statusErr.Code, nil)
		http.Error(w, fmt.Sprintf("upstream returned status %d", statusErr.Code), http.StatusBadGateway)

	default:
		// The resolver already logged the full detail; end users only
		// get a generic message.
		s.audit.LogUpstreamError(id, 0, err)
		http.Error(w, "failed to reach upstream", http.StatusBadGateway)
	}
}
