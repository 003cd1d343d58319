package analysis

import (
	"regexp"
	"sort"
	"strings"

	"chatportal-backend/internal/models"
)

const (
	maxTopics       = 7
	maxDecisions    = 5
	maxActionItems  = 7
	maxKeyPoints    = 5
	maxExtractChars = 150
	maxKeyPointChar = 100
	minSentenceLen  = 10
	minExtractLen   = 15
)

var (
	topicWordPattern     = regexp.MustCompile(`\b[a-zA-Z]{4,}\b`)
	sentimentWordPattern = regexp.MustCompile(`\b[a-z]+\b`)
	sentenceSplitPattern = regexp.MustCompile(`[.!?]`)
)

var topicStopWords = toSet(
	"the", "is", "at", "which", "on", "a", "an", "and", "or", "but",
	"in", "with", "to", "for", "of", "as", "by", "that", "this",
	"it", "from", "are", "was", "were", "been", "be", "have", "has",
	"had", "do", "does", "did", "will", "would", "could", "should",
	"can", "may", "might", "must", "i", "you", "he", "she", "we",
	"they", "what", "how", "when", "where", "why", "who", "your",
	"their", "there", "here", "then", "than", "these", "those",
)

var positiveLexicon = toSet(
	"good", "great", "excellent", "amazing", "wonderful", "fantastic",
	"love", "like", "enjoy", "happy", "glad", "thank", "thanks",
	"appreciate", "perfect", "awesome", "brilliant", "excited",
	"helpful", "useful", "nice", "better", "best", "pleased",
)

var negativeLexicon = toSet(
	"bad", "terrible", "awful", "hate", "dislike", "angry", "sad",
	"disappointed", "frustrated", "annoyed", "problem", "issue",
	"wrong", "error", "fail", "failed", "difficult", "hard",
	"worse", "worst", "unhappy", "upset", "confused",
)

// Pattern order matters: each message contributes at most one sentence per pattern.
var decisionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(decided to|will|going to|agreed to|chose to|selected|picked)`),
	regexp.MustCompile(`(?i)(let's|we'll|we will|we should|we must)`),
	regexp.MustCompile(`(?i)(final decision|conclusion|determined that)`),
	regexp.MustCompile(`(?i)(approved|confirmed|settled on)`),
}

var actionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(need to|have to|must|should|ought to)`),
	regexp.MustCompile(`(?i)(todo|to-do|task|action item)`),
	regexp.MustCompile(`(?i)((will|'ll) (do|fix|create|build|implement|design|develop))`),
	regexp.MustCompile(`(?i)(remember to|don't forget to)`),
	regexp.MustCompile(`(?i)(next step|next, we|then we)`),
}

var imperativeVerbs = toSet(
	"create", "build", "implement", "design", "develop",
	"make", "add", "update", "change", "fix", "test",
)

var keyPhrases = []string{"i need", "i want", "can you", "how to", "what is", "tell me about"}

// Features is everything the extractor derives from a message sequence.
type Features struct {
	Topics      []string
	Sentiment   models.Sentiment
	Decisions   []string
	ActionItems []string
	KeyPoints   []string
}

// ExtractFeatures runs every extractor over messages. An empty sequence yields
// empty lists and a neutral sentiment.
func ExtractFeatures(messages []models.Message) Features {
	return Features{
		Topics:      ExtractTopics(messages),
		Sentiment:   AnalyzeSentiment(messages),
		Decisions:   ExtractDecisions(messages),
		ActionItems: ExtractActionItems(messages),
		KeyPoints:   ExtractKeyPoints(messages),
	}
}

// ExtractTopics returns up to seven recurring content words, most frequent first.
// Equal counts keep first-encountered order.
func ExtractTopics(messages []models.Message) []string {
	text := strings.ToLower(joinContent(messages))

	counts := make(map[string]int)
	var order []string
	for _, word := range topicWordPattern.FindAllString(text, -1) {
		if _, stop := topicStopWords[word]; stop {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	topics := make([]string, 0, maxTopics)
	for _, word := range order {
		if counts[word] < 2 {
			break
		}
		topics = append(topics, word)
		if len(topics) == maxTopics {
			break
		}
	}
	return topics
}

// AnalyzeSentiment scores the distinct words of the conversation against the
// positive and negative lexicons.
func AnalyzeSentiment(messages []models.Message) models.Sentiment {
	text := strings.ToLower(joinContent(messages))

	seen := make(map[string]struct{})
	positive, negative := 0, 0
	for _, word := range sentimentWordPattern.FindAllString(text, -1) {
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		if _, ok := positiveLexicon[word]; ok {
			positive++
		}
		if _, ok := negativeLexicon[word]; ok {
			negative++
		}
	}

	return sentimentFromCounts(positive, negative)
}

func sentimentFromCounts(positive, negative int) models.Sentiment {
	total := positive + negative
	if total == 0 {
		return models.SentimentNeutral
	}
	ratio := float64(positive) / float64(total)
	switch {
	case ratio > 0.7:
		return models.SentimentVeryPositive
	case ratio > 0.55:
		return models.SentimentPositive
	case ratio > 0.45:
		return models.SentimentNeutral
	case ratio > 0.3:
		return models.SentimentNegative
	default:
		return models.SentimentVeryNegative
	}
}

// ExtractDecisions returns up to five commitment sentences.
func ExtractDecisions(messages []models.Message) []string {
	var found []string
	for _, msg := range messages {
		found = append(found, matchSentences(msg.Content, decisionPatterns)...)
	}
	return dedupeFold(found, maxDecisions)
}

// ExtractActionItems returns up to seven task sentences. A user message that
// opens with an imperative verb is an action item in its own right.
func ExtractActionItems(messages []models.Message) []string {
	var found []string
	for _, msg := range messages {
		found = append(found, matchSentences(msg.Content, actionPatterns)...)
	}
	for _, msg := range messages {
		if msg.Sender != models.SenderUser {
			continue
		}
		fields := strings.Fields(msg.Content)
		if len(fields) == 0 {
			continue
		}
		if _, ok := imperativeVerbs[strings.ToLower(fields[0])]; ok {
			found = append(found, truncateRunes(msg.Content, maxExtractChars))
		}
	}
	return dedupeFold(found, maxActionItems)
}

// matchSentences picks, for each pattern that matches content, the first
// sentence that also matches and is long enough.
func matchSentences(content string, patterns []*regexp.Regexp) []string {
	var out []string
	for _, pattern := range patterns {
		if !pattern.MatchString(content) {
			continue
		}
		for _, sentence := range sentenceSplitPattern.Split(content, -1) {
			trimmed := strings.TrimSpace(sentence)
			if !pattern.MatchString(sentence) || len([]rune(trimmed)) <= minSentenceLen {
				continue
			}
			if len([]rune(trimmed)) > minExtractLen {
				out = append(out, truncateRunes(trimmed, maxExtractChars))
				break
			}
		}
	}
	return out
}

// ExtractKeyPoints collects user questions and requests, capped at five.
func ExtractKeyPoints(messages []models.Message) []string {
	var points []string
	for _, msg := range messages {
		if msg.Sender != models.SenderUser || !strings.Contains(msg.Content, "?") {
			continue
		}
		var questions []string
		for _, part := range strings.Split(msg.Content, "?") {
			if q := strings.TrimSpace(part); q != "" {
				questions = append(questions, q+"?")
			}
		}
		if len(questions) > 2 {
			questions = questions[:2]
		}
		points = append(points, questions...)
	}

	for _, msg := range messages {
		if msg.Sender != models.SenderUser {
			continue
		}
		lower := strings.ToLower(msg.Content)
		for _, phrase := range keyPhrases {
			if strings.Contains(lower, phrase) {
				points = append(points, truncateRunes(msg.Content, maxKeyPointChar))
				break
			}
		}
	}

	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return points
}

func dedupeFold(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

func joinContent(messages []models.Message) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, " ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
