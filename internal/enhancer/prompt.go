package enhancer

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	"github.com/orqestra/campaign-hub/internal/domain"
)

var promptEngine = liquid.NewEngine()

const systemTemplate = `Você é um redator sênior de marketing bancário.
Reescreva o campo "{{ display_name }}" de um briefing de campanha.

Expectativas para este campo: {{ expectations }}
Diretrizes: {{ guidelines }}

Responda SOMENTE com um objeto JSON neste formato:
{"enhanced_text": "...", "explanation": "..."}
A explicação deve dizer, em uma frase, o que foi melhorado.`

const userTemplate = `{% if campaign_name != "" %}Campanha: {{ campaign_name }}
{% endif %}{% if history != "" %}Reescritas anteriores nesta sessão:
{{ history }}

{% endif %}Texto original:
{{ text }}`

// buildPrompt renders the system and user prompts for one enhancement.
func buildPrompt(meta *FieldMeta, req EnhanceRequest, history []domain.AIInteraction) (system, user string, err error) {
	system, err = promptEngine.ParseAndRenderString(systemTemplate, liquid.Bindings{
		"display_name": meta.DisplayName,
		"expectations": meta.Expectations,
		"guidelines":   meta.Guidelines,
	})
	if err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}

	user, err = promptEngine.ParseAndRenderString(userTemplate, liquid.Bindings{
		"campaign_name": req.CampaignName,
		"history":       summarizeHistory(history),
		"text":          req.Text,
	})
	if err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return system, user, nil
}

// summarizeHistory folds prior session enhancements into one compact block so
// the model keeps a consistent voice across fields.
func summarizeHistory(history []domain.AIInteraction) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "- %s: %s\n", h.FieldName, firstLine(h.EnhancedText))
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 160 {
		line = line[:160] + "…"
	}
	return line
}
