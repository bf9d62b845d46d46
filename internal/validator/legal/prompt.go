package legal

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"
)

var promptEngine = liquid.NewEngine()

const systemTemplate = `Você é um revisor jurídico de peças de marketing de uma instituição financeira brasileira.
Avalie a peça à luz das fontes legais fornecidas (CDC, LGPD, normas do CMN e CONAR).
Responda SOMENTE com um objeto JSON, sem texto adicional, no formato:
{"decision": "APROVADO" | "REPROVADO", "requires_human_review": true | false, "summary": "...", "sources": ["..."]}
Marque requires_human_review como true sempre que a conformidade depender de contexto que você não tem.`

const userTemplate = `Canal: {{ channel }}

Fontes legais relevantes:
{{ sources }}

Conteúdo da peça:
"""
{{ content }}
"""

Avalie a conformidade legal do conteúdo acima.`

func buildPrompt(channel, content string, passages []Passage) (system, user string, err error) {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, p.Title, p.Source, p.Text)
	}
	user, err = promptEngine.ParseAndRenderString(userTemplate, liquid.Bindings{
		"channel": channel,
		"sources": strings.TrimSpace(b.String()),
		"content": content,
	})
	if err != nil {
		return "", "", fmt.Errorf("legal: render prompt: %w", err)
	}
	return systemTemplate, user, nil
}
