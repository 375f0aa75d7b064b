package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mwantia/folio/pkg/db/models"
	"github.com/mwantia/folio/pkg/db/store"
	"github.com/mwantia/folio/pkg/log"
	"github.com/mwantia/folio/pkg/storage"
	"github.com/mwantia/folio/pkg/thumbnail"
)

const (
	// maxFieldLength mirrors the varchar(200) columns of document and article.
	maxFieldLength = 200

	// sniffLength is the number of leading bytes used for content detection.
	sniffLength = 3072

	defaultStorageTimeout = 30 * time.Second
)

// Options tune a repository; zero values select defaults.
type Options struct {
	StorageTimeout time.Duration
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = defaultStorageTimeout
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Download is an open stream of a stored file. Callers must close Content.
type Download struct {
	Content     io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
}

// Documents manages uploaded documents, their stored files and their tags.
type Documents struct {
	Store   store.MetadataStore `fabric:"inject"`
	Gateway storage.Gateway     `fabric:"inject"`
	Deriver *thumbnail.Deriver  `fabric:"inject"`
	Tags    *TagRegistry        `fabric:"inject"`
	Logger  log.LoggerService   `fabric:"logger:documents"`
	Options Options             `fabric:"inject"`
}

func NewDocuments(s store.MetadataStore, g storage.Gateway, d *thumbnail.Deriver, tags *TagRegistry, logger log.LoggerService, opts Options) *Documents {
	return &Documents{
		Store:   s,
		Gateway: g,
		Deriver: d,
		Tags:    tags,
		Logger:  logger,
		Options: opts.withDefaults(),
	}
}

// Init completes a container built instance.
func (d *Documents) Init(ctx context.Context) error {
	if d.Store == nil || d.Gateway == nil || d.Tags == nil {
		return errors.New("documents require a metadata store, a gateway and a tag registry")
	}
	if d.Deriver == nil {
		d.Deriver = thumbnail.New(thumbnail.DefaultHeight)
	}
	d.Options = d.Options.withDefaults()
	return nil
}

func (d *Documents) Cleanup(ctx context.Context) error {
	return nil
}

// Upload validates the input, stores the file and optional image, then
// records the document. Stored artifacts are removed again if any later
// step fails.
func (d *Documents) Upload(ctx context.Context, input UploadInput) (*models.Document, error) {
	if err := d.validateUpload(input); err != nil {
		return nil, err
	}

	var stored []string
	cleanup := func() {
		for _, id := range stored {
			d.remove(ctx, id)
		}
	}

	fileID, contentType, size, err := d.storeDocument(ctx, input.File)
	if err != nil {
		return nil, err
	}
	stored = append(stored, fileID)

	imageID := ""
	if input.Image != nil {
		imageID, err = d.storeImage(ctx, *input.Image)
		if err != nil {
			cleanup()
			return nil, err
		}
		stored = append(stored, imageID)
	}

	tags, err := d.Tags.Resolve(ctx, input.Tags)
	if err != nil {
		cleanup()
		return nil, err
	}

	title := stringValue(input.Metadata.Title)
	if title == "" {
		title = input.File.Filename
	}

	now := d.Options.Now()
	document := &models.Document{
		StoredFileID:     fileID,
		OriginalFilename: input.File.Filename,
		ContentType:      contentType,
		Size:             size,
		Title:            title,
		Author:           stringValue(input.Metadata.Author),
		Year:             input.Metadata.Year,
		Description:      stringValue(input.Metadata.Description),
		ImageID:          imageID,
		UploadedAt:       now,
		UpdatedAt:        now,
		Tags:             tags,
	}

	if err := d.Store.CreateDocument(ctx, document); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	d.Logger.Info("Uploaded document %d '%s' as '%s'", document.ID, document.OriginalFilename, fileID)
	return document, nil
}

func (d *Documents) validateUpload(input UploadInput) error {
	if strings.TrimSpace(input.File.Filename) == "" || input.File.Content == nil {
		return invalid("document", "a document file is required")
	}
	if !IsAllowedDocument(input.File.Filename) {
		return &ValidationError{
			Field:   "document",
			Message: fmt.Sprintf("file type '%s' is not allowed", input.File.Ext()),
			Err:     ErrInvalidFileType,
		}
	}
	if utf8.RuneCountInString(input.File.Filename) > maxFieldLength {
		return invalid("document", "filename exceeds %d characters", maxFieldLength)
	}

	if input.Image != nil {
		if input.Image.Content == nil {
			return invalid("image", "image content is missing")
		}
		if !IsAllowedImage(input.Image.Filename) {
			return &ValidationError{
				Field:   "image",
				Message: fmt.Sprintf("image type '%s' is not allowed", input.Image.Ext()),
				Err:     ErrInvalidFileType,
			}
		}
	}

	if err := validateMetadata(input.Metadata); err != nil {
		return err
	}
	return validateTags(input.Tags)
}

func validateMetadata(metadata DocumentMetadata) error {
	if utf8.RuneCountInString(stringValue(metadata.Title)) > maxFieldLength {
		return invalid("title", "title exceeds %d characters", maxFieldLength)
	}
	if utf8.RuneCountInString(stringValue(metadata.Author)) > maxFieldLength {
		return invalid("author", "author exceeds %d characters", maxFieldLength)
	}
	return nil
}

func validateTags(labels []string) error {
	for _, name := range NormalizeTags(labels) {
		if utf8.RuneCountInString(name) > maxTagLength {
			return invalid("tags", "tag '%s' exceeds %d characters", name, maxTagLength)
		}
	}
	return nil
}

// storeDocument sniffs the content type from the leading bytes and streams
// the whole file to the gateway.
func (d *Documents) storeDocument(ctx context.Context, file FileInput) (string, string, int64, error) {
	header := make([]byte, sniffLength)
	n, err := io.ReadFull(file.Content, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", "", 0, fmt.Errorf("failed to read upload: %w", err)
	}
	header = header[:n]

	counter := &countingReader{r: io.MultiReader(bytes.NewReader(header), file.Content)}
	id, err := d.storeReader(ctx, counter, file.Filename)
	if err != nil {
		return "", "", 0, err
	}

	return id, mimetype.Detect(header).String(), counter.n, nil
}

// storeImage stores the image and replaces it with a derived thumbnail when
// derivation succeeds. A failed derivation keeps the original image.
func (d *Documents) storeImage(ctx context.Context, image FileInput) (string, error) {
	data, err := io.ReadAll(image.Content)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	originalID, err := d.storeReader(ctx, bytes.NewReader(data), image.Filename)
	if err != nil {
		return "", err
	}

	result, err := d.Deriver.Derive(data, image.Ext())
	if err != nil {
		d.Logger.Warn("Keeping original image '%s', thumbnail derivation failed: %v", originalID, err)
		return originalID, nil
	}
	if !result.Derived {
		return originalID, nil
	}

	name := strings.TrimSuffix(image.Filename, filepath.Ext(image.Filename)) + "_thumb" + result.Ext
	thumbnailID, err := d.storeReader(ctx, bytes.NewReader(result.Data), name)
	if err != nil {
		d.Logger.Warn("Keeping original image '%s', storing thumbnail failed: %v", originalID, err)
		return originalID, nil
	}

	d.remove(ctx, originalID)
	return thumbnailID, nil
}

func (d *Documents) storeReader(ctx context.Context, r io.Reader, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Options.StorageTimeout)
	defer cancel()

	id, err := d.Gateway.Store(ctx, r, name)
	if err != nil {
		return "", unavailable("store file", err)
	}
	return id, nil
}

// remove deletes a stored artifact and only logs failures.
func (d *Documents) remove(ctx context.Context, id string) {
	if id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.Options.StorageTimeout)
	defer cancel()

	if err := d.Gateway.Delete(ctx, id); err != nil {
		d.Logger.Warn("Failed to delete stored file '%s': %v", id, err)
	}
}

// Get returns a document with its tags.
func (d *Documents) Get(ctx context.Context, id uint) (*models.Document, error) {
	document, err := d.Store.GetDocument(ctx, id)
	if err != nil {
		return nil, notFound(err, "document", id)
	}
	return document, nil
}

// Update replaces the metadata fields that are set and the full tag set.
// An empty tag list clears the document's tags.
func (d *Documents) Update(ctx context.Context, id uint, metadata DocumentMetadata, tags []string) (*models.Document, error) {
	if metadata.Title != nil && stringValue(metadata.Title) == "" {
		return nil, invalid("title", "title must not be empty")
	}
	if err := validateMetadata(metadata); err != nil {
		return nil, err
	}
	if err := validateTags(tags); err != nil {
		return nil, err
	}

	document, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if metadata.Title != nil {
		document.Title = stringValue(metadata.Title)
	}
	if metadata.Author != nil {
		document.Author = stringValue(metadata.Author)
	}
	if metadata.Year != nil {
		document.Year = metadata.Year
	}
	if metadata.Description != nil {
		document.Description = stringValue(metadata.Description)
	}

	resolved, err := d.Tags.Resolve(ctx, tags)
	if err != nil {
		return nil, err
	}
	document.Tags = resolved
	document.UpdatedAt = d.Options.Now()

	if err := d.Store.UpdateDocument(ctx, document); err != nil {
		return nil, notFound(err, "document", id)
	}

	return d.Get(ctx, id)
}

// Delete removes the document and its tag links, then its stored file and
// image. Storage failures at that point are logged and not returned.
func (d *Documents) Delete(ctx context.Context, id uint) error {
	document, err := d.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := d.Store.DeleteDocument(ctx, id); err != nil {
		return notFound(err, "document", id)
	}

	d.remove(ctx, document.StoredFileID)
	d.remove(ctx, document.ImageID)

	d.Logger.Info("Deleted document %d '%s'", id, document.OriginalFilename)
	return nil
}

// List returns documents newest first. A non-empty tag filter limits the
// result to documents carrying that tag; an unknown tag yields no documents.
func (d *Documents) List(ctx context.Context, tagFilter string) ([]models.Document, error) {
	query := store.DocumentQuery{}

	if NormalizeTag(tagFilter) != "" {
		tag, err := d.Tags.Lookup(ctx, tagFilter)
		if errors.Is(err, ErrNotFound) {
			return []models.Document{}, nil
		}
		if err != nil {
			return nil, err
		}
		query.TagID = tag.ID
	}

	return d.Store.ListDocuments(ctx, query)
}

// Search matches q case-insensitively against title and description.
// A blank query matches nothing.
func (d *Documents) Search(ctx context.Context, q string) ([]models.Document, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Document{}, nil
	}
	return d.Store.ListDocuments(ctx, store.DocumentQuery{Search: q})
}

// Download opens the stored file of a document under its original name.
func (d *Documents) Download(ctx context.Context, id uint) (*Download, error) {
	document, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := d.retrieve(ctx, document.StoredFileID)
	if err != nil {
		return nil, err
	}

	contentType := document.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Download{
		Content:     content,
		Filename:    document.OriginalFilename,
		ContentType: contentType,
		Size:        document.Size,
	}, nil
}

// Image opens the image or thumbnail attached to a document.
func (d *Documents) Image(ctx context.Context, id uint) (*Download, error) {
	document, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !document.HasImage() {
		return nil, fmt.Errorf("image of document %d: %w", id, ErrNotFound)
	}

	content, err := d.retrieve(ctx, document.ImageID)
	if err != nil {
		return nil, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(document.ImageID))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Download{
		Content:     content,
		Filename:    document.ImageID,
		ContentType: contentType,
		Size:        -1,
	}, nil
}

func (d *Documents) retrieve(ctx context.Context, id string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Options.StorageTimeout)

	content, err := d.Gateway.Retrieve(ctx, id)
	if err != nil {
		cancel()
		return nil, unavailable("retrieve file", err)
	}
	return &cancelOnClose{ReadCloser: content, cancel: cancel}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// cancelOnClose releases the retrieval deadline once the stream is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
