package api

import (
	"net/http"
	"strings"

	"github.com/mwantia/folio/internal/library"
)

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// handleSearch searches articles, documents or both depending on type.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type")))
	if kind == "" {
		kind = "all"
	}
	if kind != "all" && kind != "articles" && kind != "documents" {
		s.writeError(w, r, &library.ValidationError{Field: "type", Message: "type must be one of all, articles, documents"})
		return
	}

	result := map[string]any{"query": query}

	if kind == "all" || kind == "articles" {
		articles, err := s.articles.Search(r.Context(), query)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		result["articles"] = articles
	}

	if kind == "all" || kind == "documents" {
		documents, err := s.documents.Search(r.Context(), query)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		result["documents"] = newDocumentResponses(documents)
	}

	writeJSON(w, http.StatusOK, result)
}
