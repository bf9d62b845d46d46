// Package legal renders the RAG compliance agent: hybrid retrieval over a
// legal corpus, moderation, and an LLM verdict with a JSON contract.
package legal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Passage is one retrievable unit of the legal corpus.
type Passage struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Text   string `yaml:"text"`
	Source string `yaml:"source"`
}

// LoadCorpus reads passages from a YAML file, or returns the built-in corpus
// when path is empty.
func LoadCorpus(path string) ([]Passage, error) {
	if path == "" {
		return builtinCorpus(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("legal: read corpus: %w", err)
	}
	var doc struct {
		Passages []Passage `yaml:"passages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("legal: parse corpus: %w", err)
	}
	if len(doc.Passages) == 0 {
		return nil, fmt.Errorf("legal: corpus %s has no passages", path)
	}
	return doc.Passages, nil
}

// builtinCorpus covers the regulations campaign copy most often trips over.
func builtinCorpus() []Passage {
	return []Passage{
		{
			ID:    "cdc-37",
			Title: "CDC art. 37 — publicidade enganosa ou abusiva",
			Text: "É proibida toda publicidade enganosa ou abusiva. É enganosa qualquer modalidade de " +
				"informação ou comunicação de caráter publicitário, inteira ou parcialmente falsa, ou que, " +
				"por qualquer outro modo, seja capaz de induzir em erro o consumidor a respeito da natureza, " +
				"características, qualidade, quantidade, propriedades, origem, preço e quaisquer outros dados " +
				"sobre produtos e serviços.",
			Source: "Código de Defesa do Consumidor, art. 37",
		},
		{
			ID:    "cdc-39",
			Title: "CDC art. 39 — práticas abusivas",
			Text: "É vedado ao fornecedor enviar ou entregar ao consumidor, sem solicitação prévia, qualquer " +
				"produto, ou fornecer qualquer serviço. Ofertas devem informar condições, restrições e prazos " +
				"de forma clara e ostensiva.",
			Source: "Código de Defesa do Consumidor, art. 39",
		},
		{
			ID:    "lgpd-consent",
			Title: "LGPD — base legal para comunicação dirigida",
			Text: "O tratamento de dados pessoais para fins de marketing direto exige base legal adequada, " +
				"em regra consentimento ou legítimo interesse, com possibilidade de oposição. Comunicações " +
				"dirigidas devem oferecer mecanismo de descadastramento claro e gratuito.",
			Source: "Lei Geral de Proteção de Dados, arts. 7º e 18",
		},
		{
			ID:    "sms-optout",
			Title: "SMS promocional — identificação e opt-out",
			Text: "Mensagens SMS promocionais devem identificar o remetente e respeitar o cadastro de bloqueio. " +
				"Recomenda-se incluir instrução de cancelamento e restringir o envio ao período diurno.",
			Source: "Boas práticas de mobile marketing / Procon",
		},
		{
			ID:    "bacen-credito",
			Title: "Publicidade de crédito — custo efetivo total",
			Text: "A publicidade de operações de crédito deve informar o Custo Efetivo Total (CET) e não pode " +
				"anunciar taxa zero ou crédito sem juros quando houver encargos embutidos. Condições " +
				"promocionais de anuidade devem explicitar vigência e regras de elegibilidade.",
			Source: "Resolução CMN 4.558 e normas correlatas",
		},
		{
			ID:    "conar-claims",
			Title: "CONAR — veracidade e comprovação de claims",
			Text: "Alegações de superioridade, gratuidade ou vantagem devem ser comprováveis. Expressões como " +
				"grátis ou sem custo só podem ser utilizadas quando não houver qualquer ônus ao consumidor. " +
				"Promoções devem indicar período e estoque ou limite de participantes quando aplicável.",
			Source: "Código Brasileiro de Autorregulamentação Publicitária",
		},
	}
}
