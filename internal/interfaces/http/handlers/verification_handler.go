package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

const (
	maxImagesPerRequest = 5
	maxImageBytes       = 8 << 20
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Verifier runs a product query through the verification pipeline.
type Verifier interface {
	Verify(ctx context.Context, query common.ProductQuery) (*verdicttypes.Verdict, error)
}

// VerificationHandler serves the product verification endpoint.
type VerificationHandler struct {
	verifier Verifier
	log      logging.Logger
}

// NewVerificationHandler creates a VerificationHandler.
func NewVerificationHandler(v Verifier, log logging.Logger) *VerificationHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &VerificationHandler{verifier: v, log: log.Named("verification_handler")}
}

// Verify handles POST /api/v1/verifications. The request is multipart form
// data: product_name, description and batch_number text fields plus up to
// five image files under "images".
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeAppError(w, errors.Wrap(err, errors.ErrCodeBadRequest, "request body is not valid multipart form data"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	query := common.ProductQuery{
		ProductName:     strings.TrimSpace(r.FormValue("product_name")),
		Description:     strings.TrimSpace(r.FormValue("description")),
		UserBatchNumber: strings.TrimSpace(r.FormValue("batch_number")),
	}

	images, err := readImages(r.MultipartForm)
	if err != nil {
		writeAppError(w, err)
		return
	}
	query.Images = images

	verdict, err := h.verifier.Verify(r.Context(), query)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

func readImages(form *multipart.Form) ([]common.Image, error) {
	if form == nil {
		return nil, nil
	}
	files := form.File["images"]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > maxImagesPerRequest {
		return nil, errors.New(errors.ErrCodeValidation, "too many images").
			WithDetail("max=5")
	}

	images := make([]common.Image, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxImageBytes {
			return nil, errors.New(errors.ErrCodeImageTooLarge, "image exceeds size limit").
				WithDetail("name=" + fh.Filename)
		}

		contentType := fh.Header.Get("Content-Type")
		if contentType != "" && !allowedImageTypes[contentType] {
			return nil, errors.New(errors.ErrCodeImageInvalid, "unsupported image type").
				WithDetail("content_type=" + contentType)
		}

		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeImageInvalid, "failed to read image").
				WithDetail("name=" + fh.Filename)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeImageInvalid, "failed to read image").
				WithDetail("name=" + fh.Filename)
		}
		if len(data) > maxImageBytes {
			return nil, errors.New(errors.ErrCodeImageTooLarge, "image exceeds size limit").
				WithDetail("name=" + fh.Filename)
		}

		images = append(images, common.Image{
			Name:        fh.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}
	return images, nil
}
