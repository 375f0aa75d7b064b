package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/mwantia/folio/internal/library"
	"github.com/mwantia/folio/pkg/db/models"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temp files.
const multipartMemory = 8 << 20

type documentResponse struct {
	*models.Document
	ImageAvailable bool `json:"has_image"`
}

func newDocumentResponse(document *models.Document) documentResponse {
	return documentResponse{Document: document, ImageAvailable: document.HasImage()}
}

func newDocumentResponses(documents []models.Document) []documentResponse {
	responses := make([]documentResponse, 0, len(documents))
	for i := range documents {
		responses = append(responses, newDocumentResponse(&documents[i]))
	}
	return responses
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := s.documents.List(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDocumentResponses(documents))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	document, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDocumentResponse(document))
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeError(w, r, formError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("document")
	if err != nil {
		s.writeError(w, r, &library.ValidationError{Field: "document", Message: "a document file is required"})
		return
	}
	defer file.Close()

	input := library.UploadInput{
		File:     library.FileInput{Filename: header.Filename, Content: file},
		Metadata: metadataFromForm(r),
		Tags:     library.SplitTags(r.FormValue("tags")),
	}

	image, imageHeader, err := r.FormFile("image")
	switch {
	case err == nil:
		defer image.Close()
		if imageHeader.Filename != "" {
			input.Image = &library.FileInput{Filename: imageHeader.Filename, Content: image}
		}
	case !errors.Is(err, http.ErrMissingFile):
		s.writeError(w, r, &library.ValidationError{Field: "image", Message: "unreadable image upload"})
		return
	}

	document, err := s.documents.Upload(r.Context(), input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDocumentResponse(document))
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := parseForm(r); err != nil {
		s.writeError(w, r, formError(err))
		return
	}

	var tags []string
	if _, ok := r.Form["tags"]; ok {
		tags = library.SplitTags(r.FormValue("tags"))
	} else {
		current, err := s.documents.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		tags = models.TagNames(current.Tags)
	}

	document, err := s.documents.Update(r.Context(), id, metadataFromForm(r), tags)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDocumentResponse(document))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.documents.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	download, err := s.documents.Download(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.stream(w, r, download, "attachment")
}

func (s *Server) handleDocumentImage(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	image, err := s.documents.Image(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.stream(w, r, image, "inline")
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, download *library.Download, disposition string) {
	defer download.Content.Close()

	w.Header().Set("Content-Type", download.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": download.Filename}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if download.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(download.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, download.Content); err != nil {
		s.log.Warn("Streaming '%s' was interrupted: %v", download.Filename, err)
	}
}

// metadataFromForm maps present form fields onto metadata; absent fields
// stay nil.
func metadataFromForm(r *http.Request) library.DocumentMetadata {
	var metadata library.DocumentMetadata

	if values, ok := r.Form["title"]; ok && len(values) > 0 {
		metadata.Title = &values[0]
	}
	if values, ok := r.Form["author"]; ok && len(values) > 0 {
		metadata.Author = &values[0]
	}
	if values, ok := r.Form["year"]; ok && len(values) > 0 {
		metadata.Year = library.ParseYear(values[0])
	}
	if values, ok := r.Form["description"]; ok && len(values) > 0 {
		metadata.Description = &values[0]
	}
	return metadata
}

func parseForm(r *http.Request) error {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "multipart/") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return err
		}
		r.MultipartForm.RemoveAll()
		return nil
	}
	return r.ParseForm()
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	if errors.Is(err, multipart.ErrMessageTooLarge) {
		return &http.MaxBytesError{}
	}
	return &library.ValidationError{Field: "body", Message: "malformed form data"}
}
