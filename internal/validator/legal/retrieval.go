package legal

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/orqestra/campaign-hub/internal/llm"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var tokenRe = regexp.MustCompile(`[\pL\pN]+`)

var stopwords = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {}, "de": {}, "da": {}, "do": {}, "das": {}, "dos": {},
	"e": {}, "em": {}, "um": {}, "uma": {}, "para": {}, "por": {}, "com": {}, "que": {},
	"não": {}, "ou": {}, "ao": {}, "à": {}, "no": {}, "na": {}, "nos": {}, "nas": {}, "se": {},
}

func tokenize(s string) []string {
	var out []string
	for _, t := range tokenRe.FindAllString(strings.ToLower(s), -1) {
		if _, skip := stopwords[t]; skip {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Index holds the sparse and dense representations of the corpus.
// Dense vectors are optional: when embedding fails at build time the index
// degrades to BM25 only.
type Index struct {
	passages []Passage
	tokens   [][]string
	df       map[string]int
	avgLen   float64

	vectors [][]float64
	alpha   float64
}

// NewIndex builds the hybrid index. The embedder may be nil for sparse-only
// retrieval; alpha weights dense against sparse scores.
func NewIndex(ctx context.Context, passages []Passage, embedder llm.Client, alpha float64) *Index {
	idx := &Index{
		passages: passages,
		tokens:   make([][]string, len(passages)),
		df:       map[string]int{},
		alpha:    alpha,
	}
	totalLen := 0
	for i, p := range passages {
		idx.tokens[i] = tokenize(p.Title + " " + p.Text)
		totalLen += len(idx.tokens[i])
		seen := map[string]struct{}{}
		for _, t := range idx.tokens[i] {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			idx.df[t]++
		}
	}
	if len(passages) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(passages))
	}

	if embedder != nil {
		vectors := make([][]float64, len(passages))
		for i, p := range passages {
			vec, err := embedder.Embed(ctx, p.Title+"\n"+p.Text)
			if err != nil {
				logger.Warn("legal corpus embedding failed, using sparse retrieval only",
					"passage", p.ID, "error", err.Error())
				vectors = nil
				break
			}
			vectors[i] = vec
		}
		idx.vectors = vectors
	}
	return idx
}

type scored struct {
	passage Passage
	score   float64
}

// Search returns the top-k passages for the query by hybrid score. Scores
// from each retriever are min-max normalized before mixing so alpha acts on
// comparable ranges.
func (idx *Index) Search(ctx context.Context, embedder llm.Client, query string, topK int) []Passage {
	if topK <= 0 || len(idx.passages) == 0 {
		return nil
	}

	sparse := idx.bm25(tokenize(query))
	dense := idx.dense(ctx, embedder, query)

	normalize(sparse)
	normalize(dense)

	results := make([]scored, len(idx.passages))
	for i, p := range idx.passages {
		s := sparse[i]
		if dense != nil {
			s = idx.alpha*dense[i] + (1-idx.alpha)*sparse[i]
		}
		results[i] = scored{passage: p, score: s}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if topK > len(results) {
		topK = len(results)
	}
	out := make([]Passage, topK)
	for i := range out {
		out[i] = results[i].passage
	}
	return out
}

func (idx *Index) bm25(query []string) []float64 {
	n := float64(len(idx.passages))
	scores := make([]float64, len(idx.passages))
	for _, term := range query {
		df := idx.df[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i, toks := range idx.tokens {
			tf := 0
			for _, t := range toks {
				if t == term {
					tf++
				}
			}
			if tf == 0 {
				continue
			}
			docLen := float64(len(toks))
			denom := float64(tf) + bm25K1*(1-bm25B+bm25B*docLen/idx.avgLen)
			scores[i] += idf * float64(tf) * (bm25K1 + 1) / denom
		}
	}
	return scores
}

// dense returns cosine similarities, or nil when vectors are unavailable or
// the query embedding fails. Retrieval quality degrades, the pipeline does not.
func (idx *Index) dense(ctx context.Context, embedder llm.Client, query string) []float64 {
	if idx.vectors == nil || embedder == nil {
		return nil
	}
	qv, err := embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("query embedding failed, using sparse retrieval only", "error", err.Error())
		return nil
	}
	scores := make([]float64, len(idx.vectors))
	for i, v := range idx.vectors {
		scores[i] = cosine(qv, v)
	}
	return scores
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(scores []float64) {
	if scores == nil {
		return
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		min = math.Min(min, s)
		max = math.Max(max, s)
	}
	if max == min {
		return
	}
	for i := range scores {
		scores[i] = (scores[i] - min) / (max - min)
	}
}
