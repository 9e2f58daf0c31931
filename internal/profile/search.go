package profile

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

func terms(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tf[word]++
	}
	return tf
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for term, wa := range a {
		na += wa * wa
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		nb += wb * wb
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank scores each profile's service description against query and keeps
// at most topK results at or above threshold. Equal scores are ordered by
// profile id.
func rank(profiles []Profile, query string, threshold float64, topK int) []Summary {
	q := terms(query)
	out := make([]Summary, 0)
	for _, p := range profiles {
		score := cosine(q, terms(p.ServiceDescription))
		if score <= 0 || score < threshold {
			continue
		}
		out = append(out, p.summary(math.Round(score*1e4)/1e4))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ProfileID < out[j].ProfileID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
