// Command seed uploads a small sample catalog to the shop backend through the
// seller endpoint, the same path the seller form uses.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/seller"
	"github.com/utafrali/storefront/internal/shopapi"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

type productDef struct {
	name, category, description, features string
	originalPrice, offeredPrice           float64
	stock                                 int
}

var products = []productDef{
	{"Pixel Fold", domain.CategoryMobiles, "Foldable phone with a 7.6 inch inner display.", "Tensor G3\n256 GB", 1799, 1499, 12},
	{"Galaxy S24", domain.CategoryMobiles, "Flagship phone with a 120 Hz display.", "Snapdragon 8 Gen 3, 8 GB RAM", 999, 899, 30},
	{"ThinkPad X1 Carbon", domain.CategoryLaptops, "Lightweight business laptop.", "14 inch OLED\n32 GB RAM", 2199, 1899, 8},
	{"MacBook Air 15", domain.CategoryLaptops, "Thin laptop with all-day battery.", "M3, 16 GB", 1499, 1399, 15},
	{"Alpha 7 IV", domain.CategoryCameras, "Full-frame mirrorless camera.", "33 MP\n4K60", 2499, 2299, 5},
	{"GoPro Hero 12", domain.CategoryCameras, "Waterproof action camera.", "5.3K video, HyperSmooth", 449, 399, 40},
	{"WH-1000XM5", domain.CategoryHeadphones, "Noise-cancelling over-ear headphones.", "30 h battery\nMultipoint", 399, 329, 25},
	{"AirPods Pro 2", domain.CategoryHeadphones, "In-ear earbuds with adaptive audio.", "USB-C case", 249, 229, 60},
	{"iPad Pro 13", domain.CategoryIpads, "Tablet with an OLED display.", "M4, 256 GB", 1299, 1199, 10},
	{"iPad Air 11", domain.CategoryIpads, "Everyday tablet.", "M2, 128 GB", 599, 549, 20},
	{"Mavic 3 Pro", domain.CategoryDrones, "Triple-camera drone.", "43 min flight\nOmnidirectional sensing", 2199, 1999, 4},
	{"Mini 4 Pro", domain.CategoryDrones, "Sub-250 g camera drone.", "4K HDR, 34 min flight", 759, 699, 18},
}

type staticAuth struct{}

func (staticAuth) LoggedIn() bool { return true }

func main() {
	token := flag.String("token", os.Getenv("SEED_TOKEN"), "seller bearer token (defaults to $SEED_TOKEN)")
	limit := flag.Int("n", len(products), "number of products to upload")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.NewWithFormat("storefront-seed", cfg.LogLevel, logger.FormatText, os.Stderr)

	if *token == "" {
		log.Error("a seller token is required (-token or SEED_TOKEN)")
		os.Exit(2)
	}

	hcfg := httpclient.DefaultConfig()
	hcfg.Timeout = cfg.ShopAPITimeout
	api := shopapi.New(cfg.ShopAPIBaseURL, httpclient.New(hcfg), log)
	api.SetAuthToken(*token)
	svc := seller.NewService(api, staticAuth{}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n := min(*limit, len(products))
	failed := 0
	for i, p := range products[:n] {
		avatar, err := placeholderPNG(i)
		if err != nil {
			log.Error("failed to render placeholder", slog.String("error", err.Error()))
			os.Exit(1)
		}
		res, err := svc.Upload(ctx, domain.ProductDraft{
			Name:          p.name,
			Category:      p.category,
			Description:   p.description,
			Stock:         p.stock,
			OriginalPrice: p.originalPrice,
			OfferedPrice:  p.offeredPrice,
			Features:      p.features,
			Avatar: &domain.FileUpload{
				Filename:    p.name + ".png",
				ContentType: "image/png",
				Data:        avatar,
			},
		})
		if err != nil {
			failed++
			log.Warn("product not uploaded", slog.String("name", p.name), slog.String("error", err.Error()))
			continue
		}
		log.Info("product uploaded", slog.String("name", p.name), slog.String("product_id", res.ProductID))
	}

	log.Info("seed finished", slog.Int("uploaded", n-failed), slog.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}

// placeholderPNG renders a small solid-color square, a different hue per
// product.
func placeholderPNG(i int) ([]byte, error) {
	const size = 64
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := color.RGBA{R: uint8(40 + 37*i), G: uint8(200 - 23*i), B: uint8(90 + 61*i), A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
