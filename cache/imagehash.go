// ABOUTME: Perceptual difference hash for screenshot comparison.
// ABOUTME: 64-bit dHash tolerant of pixel noise, unlike byte-exact digests.

package cache

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
)

const (
	dhashCols = 9
	dhashRows = 8
)

// ImageFingerprint computes a 64-bit perceptual difference hash of an encoded
// PNG or JPEG screenshot. Visually similar images produce hashes within a
// small Hamming distance of each other.
func ImageFingerprint(buf []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return 0, fmt.Errorf("cache: decoding screenshot: %w", err)
	}

	gray := downsampleGray(img, dhashCols, dhashRows)

	// Each bit compares horizontally adjacent cells.
	var hash uint64
	for row := 0; row < dhashRows; row++ {
		for col := 0; col < dhashCols-1; col++ {
			hash <<= 1
			if gray[row][col] > gray[row][col+1] {
				hash |= 1
			}
		}
	}
	return hash, nil
}

// HammingDistance counts differing bits between two image fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// downsampleGray reduces img to a cols x rows grid of mean luminance values.
func downsampleGray(img image.Image, cols, rows int) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	grid := make([][]float64, rows)
	for row := 0; row < rows; row++ {
		grid[row] = make([]float64, cols)
		for col := 0; col < cols; col++ {
			x0 := bounds.Min.X + col*width/cols
			x1 := bounds.Min.X + (col+1)*width/cols
			y0 := bounds.Min.Y + row*height/rows
			y1 := bounds.Min.Y + (row+1)*height/rows
			if x1 <= x0 {
				x1 = x0 + 1
			}
			if y1 <= y0 {
				y1 = y0 + 1
			}

			var sum float64
			var count int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					r, g, b, _ := img.At(x, y).RGBA()
					// Rec. 601 luma on 16-bit channels.
					sum += 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
					count++
				}
			}
			grid[row][col] = sum / float64(count)
		}
	}
	return grid
}
