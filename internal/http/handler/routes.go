package handler

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"imagehost/internal/service"
	"imagehost/internal/storage"
)

const (
	formField         = "image"
	capturedImagePath = "/capturedimage/"

	msgMissingField  = "Image input is required in the form"
	msgEmptyFilename = "No image selected"
	msgDuplicateName = "Image with the same name already exists"
	msgImageNotExist = "Image does not exist"
	msgImageNotFound = "Image not found"
)

var msgUnsupportedFormat = "Invalid image format. Allowed formats: " + strings.Join(service.AllowedExtensions, ", ")

// imageResponse is returned by the upload and metadata endpoints.
type imageResponse struct {
	Message  string `json:"message" example:"Image found"`
	Filename string `json:"filename" example:"cat.png"`
	URL      string `json:"url" example:"http://localhost:8000/capturedimage/cat.png"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// uploadLimiter, when non-nil, gates POST /upload only.
func RegisterRoutes(app *fiber.App, store storage.Storage, svc service.ImageService, publicURL string, uploadLimiter fiber.Handler) {
	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())

	upload := []fiber.Handler{UploadImage(svc, publicURL)}
	if uploadLimiter != nil {
		upload = append([]fiber.Handler{uploadLimiter}, upload...)
	}
	app.Post("/upload", upload...)

	app.Get("/image/:filename", GetImage(svc, publicURL))
	app.Get(capturedImagePath+":filename", ServeImage(svc))
}

// HealthCheck godoc
// @Summary Readiness probe
// @Description Reports healthy when the storage directory is reachable.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "storage unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe godoc
// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadImage godoc
// @Summary Upload an image
// @Description Stores a png, jpg, jpeg or gif under its sanitized filename. Existing names are never overwritten. Limited to 5 requests per minute per client.
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image file"
// @Success 201 {object} imageResponse
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /upload [post]
func UploadImage(svc service.ImageService, publicURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, msgMissingField)
		}

		files := form.File[formField]
		if len(files) == 0 {
			// A part sent with filename="" is parsed as a plain value.
			if _, ok := form.Value[formField]; ok {
				return writeError(c, fiber.StatusBadRequest, msgEmptyFilename)
			}
			return writeError(c, fiber.StatusBadRequest, msgMissingField)
		}
		fh := files[0]

		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()

		img, err := svc.Upload(c.UserContext(), f, fh.Filename)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrEmptyFilename):
			return writeError(c, fiber.StatusBadRequest, msgEmptyFilename)
		case errors.Is(err, service.ErrUnsupportedFormat):
			return writeError(c, fiber.StatusBadRequest, msgUnsupportedFormat)
		case errors.Is(err, service.ErrDuplicateName):
			return writeError(c, fiber.StatusBadRequest, msgDuplicateName)
		default:
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(imageResponse{
			Message:  "Image uploaded successfully",
			Filename: img.Filename,
			URL:      imageURL(c, publicURL, img.Filename),
		})
	}
}

// GetImage godoc
// @Summary Image metadata
// @Description Reports whether an image exists and where to fetch it. The name is matched exactly.
// @Tags images
// @Produce json
// @Param filename path string true "Stored filename"
// @Success 200 {object} imageResponse
// @Failure 404 {object} errorPayload
// @Router /image/{filename} [get]
func GetImage(svc service.ImageService, publicURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, ok := filenameParam(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, msgImageNotExist)
		}

		img, err := svc.Get(c.UserContext(), name)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, msgImageNotExist)
			}
			return err
		}

		return c.JSON(imageResponse{
			Message:  "Image found",
			Filename: img.Filename,
			URL:      imageURL(c, publicURL, img.Filename),
		})
	}
}

// ServeImage godoc
// @Summary Download an image
// @Description Streams the raw bytes. Content-Type is sniffed from the content.
// @Tags images
// @Produce octet-stream
// @Param filename path string true "Stored filename"
// @Success 200 {file} binary
// @Failure 404 {object} errorPayload
// @Router /capturedimage/{filename} [get]
func ServeImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, ok := filenameParam(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, msgImageNotFound)
		}

		rc, img, err := svc.Open(c.UserContext(), name)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, msgImageNotFound)
			}
			return err
		}

		ct := img.ContentType
		if ct == "" {
			ct = fiber.MIMEOctetStream
		}
		c.Set(fiber.HeaderContentType, ct)
		// fasthttp closes rc once the body has been written.
		return c.Status(fiber.StatusOK).SendStream(rc, int(img.Size))
	}
}

// filenameParam returns the decoded :filename segment.
func filenameParam(c *fiber.Ctx) (string, bool) {
	name, err := url.PathUnescape(c.Params("filename"))
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// imageURL builds the absolute retrieval URL of filename.
func imageURL(c *fiber.Ctx, publicURL, filename string) string {
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		base = c.BaseURL()
	}
	return base + capturedImagePath + url.PathEscape(filename)
}
