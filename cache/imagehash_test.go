// ABOUTME: Tests for the perceptual screenshot hash and hamming distance helper.
// ABOUTME: Verifies noise tolerance: small pixel changes move few bits, big changes move many.

package cache

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// encodeGradient renders a horizontal gradient with optional per-pixel noise.
func encodeGradient(t *testing.T, w, h int, noise uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / w)
			img.Set(x, y, color.RGBA{R: v + noise, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func encodeSolid(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestImageFingerprintDeterministic(t *testing.T) {
	buf := encodeGradient(t, 128, 96, 0)
	h1, err := ImageFingerprint(buf)
	if err != nil {
		t.Fatalf("ImageFingerprint error: %v", err)
	}
	h2, err := ImageFingerprint(buf)
	if err != nil {
		t.Fatalf("ImageFingerprint error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ for identical input: %x vs %x", h1, h2)
	}
}

func TestImageFingerprintToleratesNoise(t *testing.T) {
	clean := encodeGradient(t, 128, 96, 0)
	noisy := encodeGradient(t, 128, 96, 2)

	h1, err := ImageFingerprint(clean)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ImageFingerprint(noisy)
	if err != nil {
		t.Fatal(err)
	}
	if d := HammingDistance(h1, h2); d > 4 {
		t.Errorf("slight noise moved %d bits, want <= 4", d)
	}
}

func TestImageFingerprintSeparatesDifferentContent(t *testing.T) {
	gradient := encodeGradient(t, 128, 96, 0)
	reversed := func() []byte {
		img := image.NewRGBA(image.Rect(0, 0, 128, 96))
		for y := 0; y < 96; y++ {
			for x := 0; x < 128; x++ {
				v := uint8(255 - x*255/128)
				img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}()

	h1, err := ImageFingerprint(gradient)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ImageFingerprint(reversed)
	if err != nil {
		t.Fatal(err)
	}
	if d := HammingDistance(h1, h2); d < 32 {
		t.Errorf("opposite gradients only %d bits apart", d)
	}
}

func TestImageFingerprintRejectsGarbage(t *testing.T) {
	if _, err := ImageFingerprint([]byte("not an image")); err == nil {
		t.Error("expected decode error for non-image bytes")
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		a, b uint64
		want int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{0, ^uint64(0), 64},
		{0b1010, 0b0101, 4},
	}
	for _, tt := range tests {
		if got := HammingDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("HammingDistance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSolidImagesHashEqually(t *testing.T) {
	// A flat image has no gradient information; two flat images of different
	// colors still produce the same all-zero difference hash.
	a, err := ImageFingerprint(encodeSolid(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ImageFingerprint(encodeSolid(t, color.RGBA{R: 10, G: 10, B: 10, A: 255}))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("flat images should share a hash: %x vs %x", a, b)
	}
}
