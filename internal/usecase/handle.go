package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"telegram-auth/internal/data/repository"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases s, folds accents to ASCII, drops everything except
// letters, digits, underscores, spaces and hyphens, and joins words with "-".
func Slugify(s string) string {
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	slug := slugStrip.ReplaceAllString(strings.ToLower(b.String()), "")
	slug = slugCollapse.ReplaceAllString(strings.TrimSpace(slug), "-")
	return strings.Trim(slug, "-_")
}

// baseHandle derives the handle stem from a display name, falling back to the
// chat endpoint id when the name produces nothing usable.
func baseHandle(firstName, lastName, chatID string) string {
	full := strings.TrimSpace(firstName + " " + lastName)
	if slug := Slugify(full); slug != "" {
		return slug
	}
	return "user_" + chatID
}

// uniqueHandle appends the smallest positive suffix that makes base unused.
func uniqueHandle(ctx context.Context, users repository.UserRepository, base string) (string, error) {
	candidate := base
	for suffix := 1; ; suffix++ {
		exists, err := users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(suffix)
	}
}
