package notion

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sumandas0/notionmbse/pkg/utils"
)

var trailingID = regexp.MustCompile(`([0-9a-fA-F]{32})(?:[?#].*)?$`)

// NormalizeID returns id in the dashed lowercase form the API echoes back.
// Both the compact and the dashed forms are accepted.
func NormalizeID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", utils.NewInvalidIdentifierError(id)
	}
	return parsed.String(), nil
}

// ExtractIDFromURL pulls the page or database id out of a share link.
// Anything that is already an id is normalized and returned.
func ExtractIDFromURL(link string) (string, error) {
	if id, err := NormalizeID(link); err == nil {
		return id, nil
	}
	m := trailingID.FindStringSubmatch(link)
	if m == nil {
		return "", utils.NewInvalidIdentifierError(link)
	}
	return NormalizeID(m[1])
}

// SameID compares two ids regardless of dashes and case.
func SameID(a, b string) bool {
	return strings.EqualFold(strings.ReplaceAll(a, "-", ""), strings.ReplaceAll(b, "-", ""))
}
