package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is the read model returned by GET /products/{id}.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	OfferedPrice  float64  `json:"offeredPrice"`
	OriginalPrice float64  `json:"originalPrice"`
	Stock         int      `json:"stock"`
	Features      Features `json:"features"`
	ProductAvatar string   `json:"productAvatar"`
	Images        []string `json:"images"`
	PublisherName string   `json:"publisher_name"`
	Reviews       []Review `json:"reviews"`
}

// Review is a single shopper review attached to a product.
type Review struct {
	User       string  `json:"user"`
	ProfileImg string  `json:"profileImg"`
	Rating     float64 `json:"rating"`
	Comment    string  `json:"comment"`
}

// Features decodes either a JSON array of strings or a single newline or
// comma separated string, since the seller form submits free text.
type Features []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Features) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*f = SplitFeatures(text)
	return nil
}

// SplitFeatures turns free text into a feature list, one entry per line or
// comma. Blank entries are dropped.
func SplitFeatures(text string) Features {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ',' })
	out := make(Features, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InStock reports whether any units are available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Discount returns the percentage off the original price, rounded to whole
// percent. It is zero when there is no valid original price or no markdown.
func (p Product) Discount() decimal.Decimal {
	if p.OriginalPrice <= 0 || p.OfferedPrice >= p.OriginalPrice {
		return decimal.Zero
	}
	original := decimal.NewFromFloat(p.OriginalPrice)
	off := original.Sub(decimal.NewFromFloat(p.OfferedPrice))
	return off.Div(original).Mul(decimal.NewFromInt(100)).Round(0)
}

// Rating returns the average review rating rounded to one decimal, or zero
// when there are no reviews.
func (p Product) Rating() decimal.Decimal {
	if len(p.Reviews) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, r := range p.Reviews {
		sum = sum.Add(decimal.NewFromFloat(r.Rating))
	}
	return sum.Div(decimal.NewFromInt(int64(len(p.Reviews)))).Round(1)
}

// Publisher returns the publisher name or "Not Available".
func (p Product) Publisher() string {
	if strings.TrimSpace(p.PublisherName) == "" {
		return "Not Available"
	}
	return p.PublisherName
}
