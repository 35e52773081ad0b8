package http

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/seller"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

const maxUploadMemory = 32 << 20

// SellerHandler accepts product uploads from the seller form.
type SellerHandler struct {
	service *seller.Service
	logger  *slog.Logger
}

// NewSellerHandler creates a new seller HTTP handler.
func NewSellerHandler(svc *seller.Service, logger *slog.Logger) *SellerHandler {
	return &SellerHandler{service: svc, logger: logger}
}

// Categories handles GET /api/v1/seller/categories
func (h *SellerHandler) Categories(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteData(w, http.StatusOK, domain.Categories)
}

// CreateProduct handles POST /api/v1/seller/products. The form uses the
// same field names as the backend.
func (h *SellerHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, (seller.MaxImages+1)*seller.MaxFileSize+maxUploadMemory)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid multipart form: "+err.Error()), h.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	draft, err := draftFromForm(r.MultipartForm)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Upload(r.Context(), draft)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}

func draftFromForm(form *multipart.Form) (domain.ProductDraft, error) {
	value := func(name string) string {
		if v := form.Value[name]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	d := domain.ProductDraft{
		Name:        value("name"),
		Category:    value("category"),
		Description: value("description"),
		Features:    value("features"),
	}

	var err error
	if d.Stock, err = parseInt(value("stock"), "stock"); err != nil {
		return d, err
	}
	if d.OriginalPrice, err = parseFloat(value("originalPrice"), "originalPrice"); err != nil {
		return d, err
	}
	if d.OfferedPrice, err = parseFloat(value("offeredPrice"), "offeredPrice"); err != nil {
		return d, err
	}

	if files := form.File["productAvatar"]; len(files) > 0 {
		if d.Avatar, err = readFile(files[0]); err != nil {
			return d, err
		}
	}
	for _, fh := range form.File["images"] {
		f, err := readFile(fh)
		if err != nil {
			return d, err
		}
		d.Images = append(d.Images, f)
	}
	return d, nil
}

func parseInt(s, field string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperrors.InvalidInput(field + " must be a whole number")
	}
	return n, nil
}

func parseFloat(s, field string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, apperrors.InvalidInput(field + " must be a number")
	}
	return f, nil
}

func readFile(fh *multipart.FileHeader) (*domain.FileUpload, error) {
	if fh.Size > seller.MaxFileSize {
		return nil, apperrors.InvalidInput(fmt.Sprintf("file %q exceeds %d bytes", fh.Filename, seller.MaxFileSize))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, seller.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return &domain.FileUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
