// Package seller uploads new products on behalf of a logged-in seller.
package seller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/shopapi"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/slug"
	"github.com/utafrali/storefront/pkg/validator"
)

// Upload limits.
const (
	MaxImages   = 10
	MaxFileSize = 5 << 20
)

// Uploader sends a draft to the backend.
type Uploader interface {
	CreateProduct(ctx context.Context, draft domain.ProductDraft) (*shopapi.CreateResult, error)
}

// AuthState reports whether the seller is logged in.
type AuthState interface {
	LoggedIn() bool
}

// Result is returned after a successful upload.
type Result struct {
	ProductID string `json:"productId,omitempty"`
	Message   string `json:"message"`
}

// Service validates and uploads product drafts.
type Service struct {
	api    Uploader
	auth   AuthState
	logger *slog.Logger
}

// NewService creates a seller service.
func NewService(api Uploader, auth AuthState, logger *slog.Logger) *Service {
	return &Service{api: api, auth: auth, logger: logger}
}

// Upload validates draft and sends it. Backend rejections keep the
// backend's message.
func (s *Service) Upload(ctx context.Context, draft domain.ProductDraft) (*Result, error) {
	if !s.auth.LoggedIn() {
		return nil, apperrors.Unauthorized("login required to upload products")
	}

	draft.Name = strings.TrimSpace(draft.Name)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Category = strings.ToLower(strings.TrimSpace(draft.Category))
	if err := validator.Validate(draft); err != nil {
		return nil, err
	}
	if err := checkFiles(draft); err != nil {
		return nil, err
	}
	draft = withSafeFilenames(draft)

	res, err := s.api.CreateProduct(ctx, draft)
	if err != nil {
		s.logger.ErrorContext(ctx, "product upload failed",
			slog.String("name", draft.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("upload product: %w", err)
	}

	msg := res.Message
	if msg == "" {
		msg = "Product created successfully"
	}
	s.logger.InfoContext(ctx, "product uploaded",
		slog.String("product_id", res.ProductID),
		slog.String("category", draft.Category),
		slog.Int("images", len(draft.Images)),
	)
	return &Result{ProductID: res.ProductID, Message: msg}, nil
}

func checkFiles(draft domain.ProductDraft) error {
	if len(draft.Images) > MaxImages {
		return apperrors.InvalidInput(fmt.Sprintf("at most %d images are allowed", MaxImages))
	}
	files := append([]*domain.FileUpload{draft.Avatar}, draft.Images...)
	for _, f := range files {
		if f == nil {
			continue
		}
		if len(f.Data) == 0 {
			return apperrors.InvalidInput(fmt.Sprintf("file %q is empty", f.Filename))
		}
		if len(f.Data) > MaxFileSize {
			return apperrors.InvalidInput(fmt.Sprintf("file %q exceeds %d bytes", f.Filename, MaxFileSize))
		}
		if f.ContentType != "" && !strings.HasPrefix(f.ContentType, "image/") {
			return apperrors.InvalidInput(fmt.Sprintf("file %q is not an image", f.Filename))
		}
	}
	return nil
}

// withSafeFilenames returns draft with every upload renamed to a slug of its
// original name. The uploads themselves are copied, not modified.
func withSafeFilenames(draft domain.ProductDraft) domain.ProductDraft {
	rename := func(f *domain.FileUpload) *domain.FileUpload {
		if f == nil {
			return nil
		}
		c := *f
		c.Filename = slug.Filename(f.Filename)
		return &c
	}
	draft.Avatar = rename(draft.Avatar)
	images := make([]*domain.FileUpload, len(draft.Images))
	for i, img := range draft.Images {
		images[i] = rename(img)
	}
	draft.Images = images
	return draft
}
