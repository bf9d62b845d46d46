package brand

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/orqestra/campaign-hub/internal/config"
)

var (
	hexColorRe   = regexp.MustCompile(`#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)
	fontSizeRe   = regexp.MustCompile(`font-size\s*:\s*(\d+)px`)
	fontFamilyRe = regexp.MustCompile(`font-family\s*:\s*([^;]+)`)
	widthRe      = regexp.MustCompile(`(?:^|;)\s*width\s*:\s*(\d+)px`)
	bgColorRe    = regexp.MustCompile(`background(?:-color)?\s*:\s*(#[0-9a-fA-F]{3,6})`)
	rotateRe     = regexp.MustCompile(`rotate\(\s*(-?\d+(?:\.\d+)?)deg\s*\)`)
	textShadowRe = regexp.MustCompile(`text-shadow\s*:\s*([^;]+)`)
)

// ValidateHTML runs the email rule groups over the document.
func (v *Validator) ValidateHTML(doc []byte) (*Result, error) {
	root, err := html.Parse(strings.NewReader(string(doc)))
	if err != nil {
		return nil, fmt.Errorf("brand: parse html: %w", err)
	}

	s := &htmlScan{cfg: v.cfg}
	s.walk(root)
	s.finish()
	return score(s.violations), nil
}

type htmlScan struct {
	cfg        config.BrandConfig
	violations []Violation

	sawLogo bool
	rawText strings.Builder
}

func (s *htmlScan) walk(n *html.Node) {
	if n.Type == html.TextNode {
		s.rawText.WriteString(n.Data)
	}
	if n.Type == html.ElementNode {
		s.element(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(c)
	}
}

func (s *htmlScan) element(n *html.Node) {
	style := attr(n, "style")
	switch n.Data {
	case "a":
		s.checkLink(attr(n, "href"))
		s.checkCTA(n, style)
	case "button":
		s.checkCTA(n, style)
	case "img":
		s.checkImage(n)
	case "body", "table":
		s.checkBackground(n.Data, style)
	case "style":
		s.checkStylesheet(innerText(n))
	case "blink", "marquee":
		s.violations = append(s.violations, violationf(
			"prohibited_element", "css", SeverityCritical, n.Data,
			"elemento %s é proibido", n.Data))
	}
	if style != "" {
		s.checkInlineStyle(style)
	}
	if n.Data == "div" || n.Data == "table" {
		s.checkContainerWidth(n, style)
	}
}

func (s *htmlScan) checkInlineStyle(style string) {
	for _, m := range hexColorRe.FindAllString(style, -1) {
		if !colorApproved(s.cfg, m) {
			s.violations = append(s.violations, violationf(
				"color_palette", "colors", SeverityWarning, m,
				"cor %s fora da paleta aprovada", m))
		}
	}
	if m := fontFamilyRe.FindStringSubmatch(style); m != nil {
		if !fontAllowed(s.cfg, m[1]) {
			s.violations = append(s.violations, violationf(
				"font_whitelist", "typography", SeverityWarning, strings.TrimSpace(m[1]),
				"fonte %q fora da lista permitida", strings.TrimSpace(m[1])))
		}
	}
	if m := fontSizeRe.FindStringSubmatch(style); m != nil {
		if size, _ := strconv.Atoi(m[1]); size > 0 && size < s.cfg.MinFontSizePx {
			s.violations = append(s.violations, violationf(
				"min_font_size", "typography", SeverityWarning, m[1]+"px",
				"fonte de %spx abaixo do mínimo de %dpx", m[1], s.cfg.MinFontSizePx))
		}
	}
	if m := rotateRe.FindStringSubmatch(style); m != nil {
		if deg, _ := strconv.ParseFloat(m[1], 64); abs(deg) > s.cfg.MaxRotationDeg {
			s.violations = append(s.violations, violationf(
				"max_rotation", "css", SeverityWarning, m[1]+"deg",
				"rotação de %sdeg excede o máximo de %.0fdeg", m[1], s.cfg.MaxRotationDeg))
		}
	}
	if m := textShadowRe.FindStringSubmatch(style); m != nil {
		if strings.Count(m[1], ",") >= 2 {
			s.violations = append(s.violations, violationf(
				"text_shadow", "css", SeverityInfo, strings.TrimSpace(m[1]),
				"text-shadow com múltiplas camadas"))
		}
	}
}

func (s *htmlScan) checkStylesheet(css string) {
	if strings.Contains(css, "blink") && strings.Contains(css, "@keyframes") {
		s.violations = append(s.violations, violationf(
			"blink_keyframes", "css", SeverityCritical, "@keyframes blink",
			"animação de piscar é proibida"))
	}
}

func (s *htmlScan) checkLink(href string) {
	if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "#") {
		return
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return
	}
	host := strings.ToLower(u.Hostname())
	for _, short := range s.cfg.BlockedShorteners {
		if host == short {
			s.violations = append(s.violations, violationf(
				"blocked_shortener", "links", SeverityCritical, host,
				"encurtador de URL %s é proibido", host))
			return
		}
	}
	if len(s.cfg.AllowedDomains) == 0 {
		return
	}
	for _, allowed := range s.cfg.AllowedDomains {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return
		}
	}
	s.violations = append(s.violations, violationf(
		"link_domain", "links", SeverityCritical, host,
		"domínio %s fora da lista permitida", host))
}

func (s *htmlScan) checkCTA(n *html.Node, style string) {
	if len(s.cfg.CTAColors) == 0 {
		return
	}
	m := bgColorRe.FindStringSubmatch(style)
	if m == nil {
		return
	}
	for _, c := range s.cfg.CTAColors {
		if strings.EqualFold(m[1], c) {
			return
		}
	}
	s.violations = append(s.violations, violationf(
		"cta_color", "colors", SeverityWarning, m[1],
		"cor de CTA %s fora do padrão", m[1]))
}

func (s *htmlScan) checkImage(n *html.Node) {
	src := strings.ToLower(attr(n, "src"))
	alt := attr(n, "alt")
	isLogo := strings.Contains(src, "logo") || strings.Contains(strings.ToLower(alt), "logo")
	if !isLogo {
		return
	}
	s.sawLogo = true
	if alt == "" {
		s.violations = append(s.violations, violationf(
			"logo_alt_text", "logo", SeverityInfo, src,
			"logo sem texto alternativo"))
	}
	if w, err := strconv.Atoi(attr(n, "width")); err == nil &&
		s.cfg.LogoMinWidthPx > 0 && w < s.cfg.LogoMinWidthPx {
		s.violations = append(s.violations, violationf(
			"logo_min_width", "logo", SeverityWarning, fmt.Sprintf("%dpx", w),
			"logo com %dpx de largura, mínimo %dpx", w, s.cfg.LogoMinWidthPx))
	}
}

func (s *htmlScan) checkBackground(tag, style string) {
	if tag != "body" || style == "" || len(s.cfg.NeutralColors) == 0 {
		return
	}
	m := bgColorRe.FindStringSubmatch(style)
	if m == nil {
		return
	}
	for _, c := range s.cfg.NeutralColors {
		if strings.EqualFold(m[1], c) {
			return
		}
	}
	s.violations = append(s.violations, violationf(
		"body_background", "colors", SeverityWarning, m[1],
		"fundo do corpo deve usar uma cor neutra"))
}

func (s *htmlScan) checkContainerWidth(n *html.Node, style string) {
	width := 0
	if m := widthRe.FindStringSubmatch(style); m != nil {
		width, _ = strconv.Atoi(m[1])
	} else if w, err := strconv.Atoi(attr(n, "width")); err == nil {
		width = w
	}
	if s.cfg.ContainerMaxWidth > 0 && width > s.cfg.ContainerMaxWidth {
		s.violations = append(s.violations, violationf(
			"container_max_width", "layout", SeverityWarning, fmt.Sprintf("%dpx", width),
			"container de %dpx excede o máximo de %dpx", width, s.cfg.ContainerMaxWidth))
	}
}

// finish applies the document-level rules that need the whole tree.
func (s *htmlScan) finish() {
	if !s.sawLogo {
		s.violations = append(s.violations, violationf(
			"logo_presence", "logo", SeverityCritical, "",
			"logo da marca ausente"))
	}
	if s.cfg.FooterCopyright != "" &&
		!strings.Contains(s.rawText.String(), s.cfg.FooterCopyright) {
		s.violations = append(s.violations, violationf(
			"footer_copyright", "footer", SeverityWarning, s.cfg.FooterCopyright,
			"rodapé sem o copyright %q", s.cfg.FooterCopyright))
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func innerText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
