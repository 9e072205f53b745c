package schema

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/sumandas0/notionmbse/internal/models"
)

// DefaultMatchThreshold is the similarity a column name must exceed to be
// reused for a field.
const DefaultMatchThreshold = 80

// Similarity scores two names from 0 to 100, ignoring case.
func Similarity(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(d)/float64(maxLen))))
}

// PropertyMap pairs every source name with the most similar remaining
// target name scoring above threshold. Each target is used at most once and
// sources are processed in order.
func PropertyMap(source, target []string, threshold int) map[string]string {
	remaining := append([]string(nil), target...)
	mapping := make(map[string]string, len(source))

	for _, src := range source {
		best, bestScore := -1, 0
		for i, candidate := range remaining {
			if score := Similarity(src, candidate); score > bestScore {
				best, bestScore = i, score
			}
		}
		if best >= 0 && bestScore > threshold {
			mapping[src] = remaining[best]
			remaining = append(remaining[:best], remaining[best+1:]...)
		}
	}
	return mapping
}

// InferKind guesses the column kind for a raw imported value.
func InferKind(value any) PropertyKind {
	switch v := value.(type) {
	case bool:
		return KindCheckbox
	case float64, float32, int, int32, int64:
		return KindNumber
	case time.Time, models.Timestamp, *models.Timestamp:
		return KindDate
	case []any, []string:
		return KindMultiSelect
	case string:
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			return KindDate
		}
		return KindRichText
	default:
		return KindRichText
	}
}
