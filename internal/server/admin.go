package server

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/hfi/authproxy/internal/mapping"
	"github.com/hfi/authproxy/internal/metrics"
)

// handleCreate registers a new mapping from a form-encoded request and
// answers with the share link for it.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	targetURL := r.PostFormValue("url")
	if targetURL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	def := mapping.Definition{
		TargetURL:  targetURL,
		TTLSeconds: parseExpiry(r.PostFormValue("expiry")),
		Headers:    parseHeaderLines(r.PostFormValue("headers")),
	}

	// Presence of a username wins over a bearer token when a caller
	// sends both; a mapping carries exactly one credential shape.
	username := r.PostFormValue("username")
	bearer := r.PostFormValue("bearer")
	switch {
	case username != "":
		def.Mode = mapping.ModeBasic
		def.Credential = mapping.Credential{
			Username: username,
			Password: r.PostFormValue("password"),
		}
	case bearer != "":
		def.Mode = mapping.ModeBearer
		def.Credential = mapping.Credential{Token: bearer}
	default:
		def.Mode = mapping.ModeNone
	}

	m, err := s.store.Create(def)
	if err != nil {
		var pe *mapping.PersistenceError
		if errors.As(err, &pe) {
			s.log.Error().Err(err).Msg("mapping table write failed")
			s.audit.LogPersistFailed(err)
			http.Error(w, "failed to store mapping", http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	metrics.MappingsTotal.Set(float64(s.store.Len()))
	s.audit.LogMappingCreated(m.ID, string(m.Mode), m.TTLSeconds)
	s.log.Info().Str("id", m.ID).Str("mode", string(m.Mode)).Int("ttl", m.TTLSeconds).Msg("mapping created")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.baseURL+m.ID)
}

// parseExpiry reads a leading base-10 integer from raw, truncating any
// trailing garbage ("60s" parses as 60). Input without a leading
// integer yields 0, a TTL that never stays fresh. Negative values are
// kept.
func parseExpiry(raw string) int {
	raw = strings.TrimSpace(raw)

	i := 0
	if i < len(raw) && (raw[i] == '-' || raw[i] == '+') {
		i++
	}
	j := i
	for j < len(raw) && raw[j] >= '0' && raw[j] <= '9' {
		j++
	}
	if j == i {
		return 0
	}

	n, err := strconv.Atoi(raw[:j])
	if err != nil {
		// Out of int range.
		return 0
	}
	return n
}

var headerLine = regexp.MustCompile(`^([^: ]+)\s*:\s*(.+)$`)

// parseHeaderLines splits raw into CR/LF separated "Name: Value" lines.
// Lines that do not match the shape are silently skipped. Returns nil
// when nothing parses.
func parseHeaderLines(raw string) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\r' || r == '\n'
	}) {
		m := headerLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headers[m[1]] = m[2]
	}

	if len(headers) == 0 {
		return nil
	}
	return headers
}
