package library

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	documentExtensions = map[string]struct{}{
		"pdf": {}, "doc": {}, "docx": {},
		"xls": {}, "xlsx": {},
		"ppt": {}, "pptx": {},
		"txt": {},
	}

	imageExtensions = map[string]struct{}{
		"png": {}, "jpg": {}, "jpeg": {}, "svg": {},
	}
)

// FileInput is an uploaded file as received from the client.
type FileInput struct {
	Filename string
	Content  io.Reader
}

// Ext returns the lower-cased extension without its leading dot.
func (f FileInput) Ext() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Filename), "."))
}

// DocumentMetadata carries the descriptive fields of a document. Nil fields
// are left unchanged on update and empty on upload.
type DocumentMetadata struct {
	Title       *string
	Author      *string
	Year        *int
	Description *string
}

// UploadInput is everything needed to create a document.
type UploadInput struct {
	File     FileInput
	Image    *FileInput
	Metadata DocumentMetadata
	Tags     []string
}

// ParseYear accepts a decimal year. Anything else, including blank input,
// yields nil.
func ParseYear(raw string) *int {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &year
}

// IsAllowedDocument reports whether filename carries a document extension.
func IsAllowedDocument(filename string) bool {
	_, ok := documentExtensions[FileInput{Filename: filename}.Ext()]
	return ok
}

// IsAllowedImage reports whether filename carries an image extension.
func IsAllowedImage(filename string) bool {
	_, ok := imageExtensions[FileInput{Filename: filename}.Ext()]
	return ok
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
