package shopapi

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
)

// encodeDraft renders draft as the multipart form the backend's create
// endpoint reads: one text part per field, an optional productAvatar file and
// one images part per gallery file.
func encodeDraft(draft domain.ProductDraft) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"name", draft.Name},
		{"category", draft.Category},
		{"description", draft.Description},
		{"stock", strconv.Itoa(draft.Stock)},
		{"originalPrice", strconv.FormatFloat(draft.OriginalPrice, 'f', -1, 64)},
		{"offeredPrice", strconv.FormatFloat(draft.OfferedPrice, 'f', -1, 64)},
		{"features", draft.Features},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if draft.Avatar != nil {
		if err := writeFile(w, "productAvatar", draft.Avatar); err != nil {
			return nil, "", err
		}
	}
	for _, img := range draft.Images {
		if img == nil {
			continue
		}
		if err := writeFile(w, "images", img); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(w *multipart.Writer, field string, f *domain.FileUpload) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(f.Filename)))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("write %s part: %w", field, err)
	}
	return nil
}
