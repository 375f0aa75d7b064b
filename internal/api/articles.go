package api

import (
	"net/http"

	"github.com/mwantia/folio/internal/library"
)

type articleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.articles.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	article, err := s.articles.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var in articleRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, &library.ValidationError{Field: "body", Message: "invalid json"})
		return
	}

	article, err := s.articles.Create(r.Context(), in.Title, in.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var in articleRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, &library.ValidationError{Field: "body", Message: "invalid json"})
		return
	}

	article, err := s.articles.Update(r.Context(), id, in.Title, in.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.articles.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
