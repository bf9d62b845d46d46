package brand

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/orqestra/campaign-hub/internal/config"
)

func testRules() config.BrandConfig {
	return config.BrandConfig{
		ApprovedColors:    []string{"#ff6600", "#003366"},
		PrimaryColors:     []string{"#ff6600"},
		NeutralColors:     []string{"#ffffff", "#f5f5f5", "#333333"},
		FontWhitelist:     []string{"Arial", "Helvetica"},
		MinFontSizePx:     12,
		LogoMinWidthPx:    120,
		ContainerMaxWidth: 600,
		CTAColors:         []string{"#ff6600"},
		FooterCopyright:   "© 2026 Orqestra",
		AllowedDomains:    []string{"orqestra.com"},
		BlockedShorteners: []string{"bit.ly", "tinyurl.com"},
		MaxRotationDeg:    5,
		PaletteTolerance:  30,
	}
}

const compliantEmail = `<html><body style="background-color:#ffffff">
<table width="600">
<tr><td><img src="https://cdn.orqestra.com/logo.png" alt="Logo Orqestra" width="150"></td></tr>
<tr><td style="font-family: Arial, sans-serif; font-size: 14px; color: #333333">
Aproveite a anuidade promocional.
<a href="https://orqestra.com/promo" style="background-color:#ff6600">Quero aproveitar</a>
</td></tr>
<tr><td>© 2026 Orqestra</td></tr>
</table>
</body></html>`

func countSeverity(res *Result, sev string) int {
	n := 0
	for _, v := range res.Violations {
		if v.Severity == sev {
			n++
		}
	}
	return n
}

func TestCompliantEmail(t *testing.T) {
	res, err := New(testRules()).ValidateHTML([]byte(compliantEmail))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Compliant || res.Score != 100 || len(res.Violations) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestMissingLogoIsCritical(t *testing.T) {
	doc := strings.Replace(compliantEmail,
		`<tr><td><img src="https://cdn.orqestra.com/logo.png" alt="Logo Orqestra" width="150"></td></tr>`,
		"", 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if res.Compliant {
		t.Error("email without logo should not be compliant")
	}
	if res.Summary.Critical != 1 || res.Score != 80 {
		t.Errorf("critical = %d, score = %d", res.Summary.Critical, res.Score)
	}
	if res.Violations[0].Rule != "logo_presence" {
		t.Errorf("rule = %q", res.Violations[0].Rule)
	}
}

func TestBlockedShortenerIsCritical(t *testing.T) {
	doc := strings.Replace(compliantEmail, "https://orqestra.com/promo", "https://bit.ly/x7", 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if countSeverity(res, SeverityCritical) != 1 {
		t.Fatalf("violations = %+v", res.Violations)
	}
	if res.Violations[0].Rule != "blocked_shortener" || res.Violations[0].Value != "bit.ly" {
		t.Errorf("violation = %+v", res.Violations[0])
	}
}

func TestOffDomainLinkIsCritical(t *testing.T) {
	doc := strings.Replace(compliantEmail, "https://orqestra.com/promo", "https://evil.example.net/promo", 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if countSeverity(res, SeverityCritical) != 1 || res.Violations[0].Rule != "link_domain" {
		t.Fatalf("violations = %+v", res.Violations)
	}
}

func TestSmallFontWarns(t *testing.T) {
	doc := strings.Replace(compliantEmail, "font-size: 14px", "font-size: 9px", 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if res.Compliant || res.Score != 95 {
		t.Fatalf("result = %+v", res)
	}
	if res.Violations[0].Rule != "min_font_size" {
		t.Errorf("rule = %q", res.Violations[0].Rule)
	}
}

func TestFontOutsideWhitelistWarns(t *testing.T) {
	doc := strings.Replace(compliantEmail, "font-family: Arial, sans-serif", "font-family: Comic Sans MS, sans-serif", 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if countSeverity(res, SeverityWarning) != 1 || res.Violations[0].Rule != "font_whitelist" {
		t.Fatalf("violations = %+v", res.Violations)
	}
}

func TestOffPaletteColorWarns(t *testing.T) {
	doc := strings.Replace(compliantEmail, "color: #333333", "color: #00cc44", 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if res.Compliant || res.Violations[0].Rule != "color_palette" {
		t.Fatalf("result = %+v", res)
	}
}

func TestWideContainerWarns(t *testing.T) {
	doc := strings.Replace(compliantEmail, `<table width="600">`, `<table width="720">`, 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if res.Compliant || res.Violations[0].Rule != "container_max_width" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRotationBeyondLimitWarns(t *testing.T) {
	doc := strings.Replace(compliantEmail, `style="background-color:#ff6600"`,
		`style="background-color:#ff6600; transform: rotate(12deg)"`, 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if res.Compliant || res.Violations[0].Rule != "max_rotation" {
		t.Fatalf("result = %+v", res)
	}
}

func TestBlinkKeyframesIsCritical(t *testing.T) {
	doc := strings.Replace(compliantEmail, "</body>",
		`<style>@keyframes blink { 50% { opacity: 0; } }</style></body>`, 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if countSeverity(res, SeverityCritical) != 1 || res.Violations[0].Rule != "blink_keyframes" {
		t.Fatalf("violations = %+v", res.Violations)
	}
}

func TestMissingCopyrightWarns(t *testing.T) {
	doc := strings.Replace(compliantEmail, "© 2026 Orqestra", "Orqestra", 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if res.Compliant || res.Violations[0].Rule != "footer_copyright" {
		t.Fatalf("result = %+v", res)
	}
}

func TestOffCTAColorWarns(t *testing.T) {
	doc := strings.Replace(compliantEmail, `<a href="https://orqestra.com/promo" style="background-color:#ff6600">`,
		`<a href="https://orqestra.com/promo" style="background-color:#003366">`, 1)
	res, err := New(testRules()).ValidateHTML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if countSeverity(res, SeverityWarning) != 1 || res.Violations[0].Rule != "cta_color" {
		t.Fatalf("violations = %+v", res.Violations)
	}
}

func encodePNG(t *testing.T, fill func(x, y int) color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestOnPaletteImageCompliant(t *testing.T) {
	data := encodePNG(t, func(int, int) color.RGBA {
		return color.RGBA{R: 0xff, G: 0x66, B: 0x00, A: 0xff}
	})
	res, err := New(testRules()).ValidateImage(data)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Compliant || res.Score != 100 {
		t.Fatalf("result = %+v", res)
	}
}

func TestOffPaletteDominantColorIsCritical(t *testing.T) {
	data := encodePNG(t, func(x, _ int) color.RGBA {
		if x < 32 {
			return color.RGBA{R: 0xff, G: 0x66, B: 0x00, A: 0xff}
		}
		return color.RGBA{G: 0xff, A: 0xff}
	})
	res, err := New(testRules()).ValidateImage(data)
	if err != nil {
		t.Fatal(err)
	}
	if res.Compliant || countSeverity(res, SeverityCritical) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Violations[0].Rule != "image_palette" {
		t.Errorf("rule = %q", res.Violations[0].Rule)
	}
}

func TestUndecodableImage(t *testing.T) {
	if _, err := New(testRules()).ValidateImage([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}
