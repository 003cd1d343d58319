package search

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ErrEmptyVocabulary is returned when no document contributes a usable term.
var ErrEmptyVocabulary = errors.New("empty vocabulary; documents contain only stop words")

var termPattern = regexp.MustCompile(`\b\w\w+\b`)

// englishStopWords is the term list dropped before TF-IDF weighting.
var englishStopWords = toSet(
	"a", "about", "above", "across", "after", "afterwards", "again", "against", "all", "almost",
	"alone", "along", "already", "also", "although", "always", "am", "among", "amongst", "an",
	"and", "another", "any", "anyhow", "anyone", "anything", "anyway", "anywhere", "are", "around",
	"as", "at", "be", "became", "because", "become", "becomes", "been", "before", "beforehand",
	"behind", "being", "below", "beside", "besides", "between", "beyond", "both", "but", "by",
	"can", "cannot", "could", "did", "do", "does", "done", "down", "due", "during",
	"each", "either", "else", "elsewhere", "enough", "etc", "even", "ever", "every", "everyone",
	"everything", "everywhere", "except", "few", "for", "former", "formerly", "from", "further", "get",
	"give", "go", "had", "has", "hasnt", "have", "he", "hence", "her", "here",
	"hereafter", "hereby", "herein", "hers", "herself", "him", "himself", "his", "how", "however",
	"ie", "if", "in", "indeed", "into", "is", "it", "its", "itself", "just",
	"last", "latter", "least", "less", "ltd", "made", "many", "may", "me", "meanwhile",
	"might", "mine", "more", "moreover", "most", "mostly", "much", "must", "my", "myself",
	"namely", "neither", "never", "nevertheless", "next", "no", "nobody", "none", "noone", "nor",
	"not", "nothing", "now", "nowhere", "of", "off", "often", "on", "once", "one",
	"only", "onto", "or", "other", "others", "otherwise", "our", "ours", "ourselves", "out",
	"over", "own", "per", "perhaps", "please", "put", "rather", "re", "same", "see",
	"seem", "seemed", "seeming", "seems", "several", "she", "should", "since", "so", "some",
	"somehow", "someone", "something", "sometime", "sometimes", "somewhere", "still", "such", "than", "that",
	"the", "their", "them", "themselves", "then", "thence", "there", "thereafter", "thereby", "therefore",
	"therein", "thereupon", "these", "they", "this", "those", "though", "through", "throughout", "thru",
	"thus", "to", "together", "too", "toward", "towards", "under", "until", "up", "upon",
	"us", "very", "via", "was", "we", "well", "were", "what", "whatever", "when",
	"whence", "whenever", "where", "whereafter", "whereas", "whereby", "wherein", "whereupon", "wherever", "whether",
	"which", "while", "whither", "who", "whoever", "whole", "whom", "whose", "why", "will",
	"with", "within", "without", "would", "yet", "you", "your", "yours", "yourself", "yourselves",
)

// tfidfVectors weights every document over a shared vocabulary of at most
// maxFeatures terms and returns L2-normalised sparse vectors.
//
// Terms are lowercase word runs of two or more characters. The vocabulary keeps
// the terms with the highest total count across all documents, ties broken
// alphabetically. Inverse document frequency is smoothed:
// idf(t) = ln((1+n) / (1+df(t))) + 1.
func tfidfVectors(docs []string, maxFeatures int) ([]map[string]float64, error) {
	counts := make([]map[string]int, len(docs))
	total := make(map[string]int)
	df := make(map[string]int)
	for i, doc := range docs {
		counts[i] = make(map[string]int)
		for _, term := range termPattern.FindAllString(strings.ToLower(doc), -1) {
			if _, stop := englishStopWords[term]; stop {
				continue
			}
			if counts[i][term] == 0 {
				df[term]++
			}
			counts[i][term]++
			total[term]++
		}
	}
	if len(total) == 0 {
		return nil, ErrEmptyVocabulary
	}

	vocab := make([]string, 0, len(total))
	for term := range total {
		vocab = append(vocab, term)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if total[vocab[i]] != total[vocab[j]] {
			return total[vocab[i]] > total[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if maxFeatures > 0 && len(vocab) > maxFeatures {
		vocab = vocab[:maxFeatures]
	}

	n := float64(len(docs))
	vectors := make([]map[string]float64, len(docs))
	for i := range docs {
		vec := make(map[string]float64)
		var norm float64
		for _, term := range vocab {
			tf := counts[i][term]
			if tf == 0 {
				continue
			}
			idf := math.Log((1+n)/(1+float64(df[term]))) + 1
			w := float64(tf) * idf
			vec[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// sparseDot is the cosine similarity of two L2-normalised sparse vectors.
func sparseDot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a {
		dot += w * b[term]
	}
	return dot
}

// jaccard compares the lowercase whitespace-token sets of two texts.
func jaccard(a, b string) float64 {
	setA := toSet(strings.Fields(strings.ToLower(a))...)
	setB := toSet(strings.Fields(strings.ToLower(b))...)

	union := len(setA)
	inter := 0
	for w := range setB {
		if _, ok := setA[w]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
