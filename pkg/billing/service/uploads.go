package service

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/picturescaler/server/internal/metrics"
	apperrors "github.com/picturescaler/server/pkg/app/errors"
	apphttp "github.com/picturescaler/server/pkg/app/http"
	"github.com/picturescaler/server/pkg/billing"
	"github.com/picturescaler/server/pkg/config"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/imaging"
)

// uploadsHTTP serves the upload intake: accept images, verify the balance
// covers them, run the resize pipeline, then debit and return the archive.
// The debit happens after processing so a pipeline failure costs nothing.
type uploadsHTTP struct {
	service  Service
	pipeline imaging.Pipeline
	cfg      config.UploadsConfig
	logger   *zap.Logger
}

// RegisterUploadRoutes registers the upload endpoint on an authenticated router.
func RegisterUploadRoutes(r chi.Router, service Service, pipeline imaging.Pipeline, cfg config.UploadsConfig, logger *zap.Logger) {
	h := &uploadsHTTP{
		service:  service,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}

	r.Post("/uploads", apphttp.HandleError(h.upload))
}

func (h *uploadsHTTP) upload(w http.ResponseWriter, r *http.Request) error {
	start := time.Now()

	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return apperrors.BadRequestError(err, "invalid multipart form")
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files, err := h.acceptFiles(r)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return apperrors.BadRequestError(nil, "no supported image files in upload")
	}

	required := int64(len(files))

	// Early rejection before burning CPU on the pipeline; the debit below
	// re-checks under the row lock.
	if usr.Tokens < required {
		return apperrors.WithDetails(
			apperrors.PaymentRequiredError(nil, "insufficient tokens"),
			map[string]any{
				"required":  required,
				"available": usr.Tokens,
			})
	}

	job := imaging.Job{
		ID:          uuid.NewString(),
		Orientation: r.FormValue("orientation"),
		Scale:       parseScale(r.FormValue("scale")),
		Files:       files,
	}
	debit := billing.JobDebit{
		Files:       required,
		Orientation: job.Orientation,
		Scale:       job.Scale,
	}
	debit.Normalize()
	job.Orientation = debit.Orientation
	job.Scale = debit.Scale

	result, err := h.pipeline.Process(r.Context(), job)
	if err != nil {
		return apperrors.BadRequestError(err, "failed to process images")
	}

	debitResult, err := h.service.DebitForJob(r.Context(), usr.ID, debit)
	if err != nil {
		return err
	}

	metrics.UploadFiles.Observe(float64(required))
	metrics.UploadDuration.Observe(time.Since(start).Seconds())

	w.Header().Set("X-Tokens-Remaining", strconv.FormatInt(debitResult.Remaining, 10))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.JobID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Archive)
	return nil
}

// acceptFiles reads the multipart files, keeping only supported image
// types. Unsupported files are skipped, not rejected, matching the intake
// behavior users expect from a batch drop.
func (h *uploadsHTTP) acceptFiles(r *http.Request) ([]imaging.File, error) {
	if r.MultipartForm == nil {
		return nil, apperrors.BadRequestError(nil, "no files uploaded")
	}

	var files []imaging.File
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			if !supportedImage(header.Filename) {
				continue
			}
			if len(files) >= h.cfg.MaxFiles {
				return nil, apperrors.BadRequestError(nil,
					fmt.Sprintf("too many files, limit is %d", h.cfg.MaxFiles))
			}

			f, err := header.Open()
			if err != nil {
				return nil, apperrors.BadRequestError(err, "failed to read uploaded file")
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, apperrors.BadRequestError(err, "failed to read uploaded file")
			}

			files = append(files, imaging.File{Name: header.Filename, Data: data})
		}
	}
	return files, nil
}

func supportedImage(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// parseScale defaults to full print resolution when the form omits or
// mangles the value; Normalize clamps whatever parses.
func parseScale(raw string) int64 {
	if raw == "" {
		return billing.MaxScale
	}
	scale, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return billing.MaxScale
	}
	return scale
}
