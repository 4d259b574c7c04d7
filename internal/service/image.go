package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"imagehost/internal/model"
	"imagehost/internal/storage"
)

var (
	ErrReaderNil         = errors.New("reader is nil")
	ErrEmptyFilename     = errors.New("filename is empty")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDuplicateName     = errors.New("image with the same name already exists")
	ErrNotFound          = errors.New("image not found")
)

const tracerName = "imagehost/internal/service"

// ImageService defines the use cases for handling images.
type ImageService interface {
	// Upload validates originalFilename, sanitizes it and stores r under the sanitized name.
	// Validation runs before any storage access. An existing name is never overwritten.
	Upload(ctx context.Context, r io.Reader, originalFilename string) (*model.Image, error)

	// Get reports a stored image by its exact stored name.
	Get(ctx context.Context, filename string) (*model.Image, error)

	// Open returns the content of a stored image. The caller closes the reader.
	Open(ctx context.Context, filename string) (io.ReadCloser, *model.Image, error)
}

// imageService is a concrete implementation of ImageService.
type imageService struct {
	store  storage.Storage
	tracer trace.Tracer
}

// NewImageService constructs a new ImageService.
func NewImageService(store storage.Storage) ImageService {
	return &imageService{store: store, tracer: otel.Tracer(tracerName)}
}

func (s *imageService) Upload(ctx context.Context, r io.Reader, originalFilename string) (_ *model.Image, err error) {
	ctx, span := s.tracer.Start(ctx, "image.upload", trace.WithAttributes(
		attribute.String("image.original_filename", originalFilename),
	))
	defer func() { endSpan(span, err) }()

	if r == nil {
		return nil, ErrReaderNil
	}
	if strings.TrimSpace(originalFilename) == "" {
		return nil, ErrEmptyFilename
	}
	if !IsAllowedImage(originalFilename) {
		return nil, ErrUnsupportedFormat
	}

	// An allowed extension is plain ASCII, so the sanitized name is never empty here.
	name := SecureFilename(originalFilename)
	span.SetAttributes(attribute.String("image.filename", name))

	info, err := s.store.Create(ctx, name, r)
	if err != nil {
		if errors.Is(err, storage.ErrExists) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("save image: %w", err)
	}
	span.SetAttributes(attribute.Int64("image.size", info.Size))

	return toImage(info), nil
}

// Get looks the name up verbatim; names that cannot be stored are simply not found.
func (s *imageService) Get(ctx context.Context, filename string) (_ *model.Image, err error) {
	ctx, span := s.tracer.Start(ctx, "image.get", trace.WithAttributes(
		attribute.String("image.filename", filename),
	))
	defer func() { endSpan(span, err) }()

	info, err := s.store.Stat(ctx, filename)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	return toImage(info), nil
}

// Open streams a stored image.
func (s *imageService) Open(ctx context.Context, filename string) (_ io.ReadCloser, _ *model.Image, err error) {
	ctx, span := s.tracer.Start(ctx, "image.open", trace.WithAttributes(
		attribute.String("image.filename", filename),
	))
	defer func() { endSpan(span, err) }()

	rc, info, err := s.store.Open(ctx, filename)
	if err != nil {
		return nil, nil, mapLookupErr(err)
	}
	return rc, toImage(info), nil
}

func mapLookupErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
		return ErrNotFound
	}
	return err
}

func toImage(info storage.ObjectInfo) *model.Image {
	return &model.Image{
		Filename:    info.Name,
		Size:        info.Size,
		ContentType: info.ContentType,
		CreatedAt:   info.LastModified.UTC(),
	}
}

// endSpan records unexpected failures only; client errors are part of normal operation.
func endSpan(span trace.Span, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrEmptyFilename), errors.Is(err, ErrUnsupportedFormat):
		span.SetAttributes(attribute.String("image.rejected", err.Error()))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
