package similarity

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Scorer computes a diagnostic cosine similarity between a query and the
// retrieved context using a local hashed term-frequency embedding. No model
// download, no network; the score never gates an answer.
type Scorer struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

func NewScorer() *Scorer {
	return &Scorer{
		dimension:    512,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
	}
}

func (s *Scorer) Score(query, context string) float64 {
	if strings.TrimSpace(query) == "" || strings.TrimSpace(context) == "" {
		return 0
	}
	a := s.embed(query)
	b := s.embed(context)

	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	if math.IsNaN(dot) {
		return 0
	}
	return dot
}

// embed builds an L2-normalized hashed bag-of-words vector.
func (s *Scorer) embed(text string) []float64 {
	vec := make([]float64, s.dimension)
	for _, tok := range s.tokenPattern.FindAllString(strings.ToLower(text), -1) {
		vec[s.bucket(tok)]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func (s *Scorer) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32()) % s.dimension
}
