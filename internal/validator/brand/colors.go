package brand

import (
	"strconv"
	"strings"

	"github.com/orqestra/campaign-hub/internal/config"
)

type rgb struct{ r, g, b int }

// parseHex accepts #rgb and #rrggbb. ok is false for anything else.
func parseHex(s string) (rgb, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, true
}

// distance is the euclidean distance between two colors in RGB space.
func distance(a, b rgb) float64 {
	dr := float64(a.r - b.r)
	dg := float64(a.g - b.g)
	db := float64(a.b - b.b)
	return dr*dr + dg*dg + db*db
}

// withinPalette reports whether c sits within tol of any palette entry.
// tol is a straight-line RGB distance; zero means exact match.
func withinPalette(c rgb, palette []string, tol float64) bool {
	for _, p := range palette {
		pc, ok := parseHex(p)
		if !ok {
			continue
		}
		if distance(c, pc) <= tol*tol {
			return true
		}
	}
	return false
}

// colorApproved checks a hex color against every configured palette group.
// An empty rulebook approves everything.
func colorApproved(cfg config.BrandConfig, hex string) bool {
	c, ok := parseHex(hex)
	if !ok {
		return true
	}
	palette := make([]string, 0,
		len(cfg.ApprovedColors)+len(cfg.PrimaryColors)+len(cfg.NeutralColors)+len(cfg.CTAColors))
	palette = append(palette, cfg.ApprovedColors...)
	palette = append(palette, cfg.PrimaryColors...)
	palette = append(palette, cfg.NeutralColors...)
	palette = append(palette, cfg.CTAColors...)
	if len(palette) == 0 {
		return true
	}
	return withinPalette(c, palette, cfg.PaletteTolerance)
}

// fontAllowed checks every family in a font-family stack against the
// whitelist. Generic families (serif, sans-serif, monospace) always pass.
func fontAllowed(cfg config.BrandConfig, stack string) bool {
	if len(cfg.FontWhitelist) == 0 {
		return true
	}
	for _, fam := range strings.Split(stack, ",") {
		fam = strings.Trim(strings.TrimSpace(fam), `'"`)
		if fam == "" {
			continue
		}
		switch strings.ToLower(fam) {
		case "serif", "sans-serif", "monospace", "cursive", "system-ui":
			continue
		}
		ok := false
		for _, allowed := range cfg.FontWhitelist {
			if strings.EqualFold(fam, allowed) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
