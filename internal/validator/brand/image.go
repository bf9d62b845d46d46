package brand

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"

	"golang.org/x/image/draw"
)

// sampleSize is the side of the thumbnail used for color extraction.
// Downscaling first keeps quantization cheap and ignores dithering noise.
const sampleSize = 64

// dominantShareFloor drops colors that cover too little of the image to
// matter for palette compliance.
const dominantShareFloor = 0.05

type dominantColor struct {
	color rgb
	share float64
}

// ValidateImage decodes an in-app creative and scores its dominant colors
// against the approved palette.
func (v *Validator) ValidateImage(data []byte) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("brand: decode image: %w", err)
	}

	dominant := dominantColors(img)
	palette := make([]string, 0, len(v.cfg.ApprovedColors)+len(v.cfg.PrimaryColors)+len(v.cfg.NeutralColors))
	palette = append(palette, v.cfg.ApprovedColors...)
	palette = append(palette, v.cfg.PrimaryColors...)
	palette = append(palette, v.cfg.NeutralColors...)

	var violations []Violation
	if len(palette) > 0 {
		for _, d := range dominant {
			if withinPalette(d.color, palette, v.cfg.PaletteTolerance) {
				continue
			}
			severity := SeverityWarning
			if d.share >= 0.40 {
				severity = SeverityCritical
			}
			hex := fmt.Sprintf("#%02x%02x%02x", d.color.r, d.color.g, d.color.b)
			violations = append(violations, violationf(
				"image_palette", "colors", severity, hex,
				"cor dominante %s (%.0f%% da imagem) fora da paleta aprovada", hex, d.share*100))
		}
	}
	return score(violations), nil
}

// dominantColors downscales, quantizes to 4 bits per channel and returns the
// buckets above the share floor, largest first.
func dominantColors(img image.Image) []dominantColor {
	thumb := image.NewRGBA(image.Rect(0, 0, sampleSize, sampleSize))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	counts := map[rgb]int{}
	total := 0
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			r, g, b, a := thumb.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			q := rgb{
				r: int(r>>8) & 0xf0,
				g: int(g>>8) & 0xf0,
				b: int(b>>8) & 0xf0,
			}
			counts[q]++
			total++
		}
	}
	if total == 0 {
		return nil
	}

	out := make([]dominantColor, 0, len(counts))
	for c, n := range counts {
		share := float64(n) / float64(total)
		if share < dominantShareFloor {
			continue
		}
		// Report the bucket center, not its low edge.
		out = append(out, dominantColor{
			color: rgb{c.r + 8, c.g + 8, c.b + 8},
			share: share,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].share > out[j].share })
	return out
}
