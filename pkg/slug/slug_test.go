package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Wireless Headphones", "wireless-headphones"},
		{"  Hello   World!  ", "hello-world"},
		{"Kadın Giyim", "kadin-giyim"},
		{"Çocuk Ürünleri", "cocuk-urunleri"},
		{"Café Crème", "cafe-creme"},
		{"Straße", "strasse"},
		{"iPad Pro 12.9\"", "ipad-pro-12-9"},
		{"---", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.input))
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a.png", "a.png"},
		{"My Photo (1).JPG", "my-photo-1.jpg"},
		{`C:\Users\me\Ürün Görseli.jpeg`, "urun-gorseli.jpeg"},
		{"../../etc/passwd", "passwd"},
		{"noext", "noext"},
		{"😀.png", "file.png"},
		{"weird.p g", "weird-p-g"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.input))
		})
	}
}
