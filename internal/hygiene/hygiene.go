// Package hygiene scores fragment bodies on a [0,1] quality scale.
//
// The score blends token density, character density, indentation stability,
// and a comment penalty, plus a per-language structure bonus. Every metric is
// computed over non-blank lines. The function is total: empty bodies score
// without dividing by zero.
package hygiene

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

const (
	tokensPerLine     = 8.0
	charsPerLine      = 120.0
	indentVarianceDiv = 16.0
	maxCommentRatio   = 0.8
	emptyStability    = 0.5

	weightTokenDensity = 0.25
	weightCharDensity  = 0.25
	weightIndent       = 0.25
	weightComment      = 0.15
)

// Breakdown exposes each metric that contributes to Score.
type Breakdown struct {
	TokenDensity   float64 `json:"token_density"`
	CharDensity    float64 `json:"char_density"`
	IndentQuality  float64 `json:"indent_quality"`
	CommentPenalty float64 `json:"comment_penalty"`
	StructureBonus float64 `json:"structure_bonus"`
	Score          float64 `json:"score"`
}

// Score returns the rounded hygiene score of body for lang.
func Score(body string, lang fragment.Language) float64 {
	return Evaluate(body, lang).Score
}

// Evaluate computes all metrics and the final score.
func Evaluate(body string, lang fragment.Language) Breakdown {
	lines := nonBlankLines(body)

	lineCount := float64(max(len(lines), 1))
	charCount := 0
	commentLines := 0
	for _, line := range lines {
		charCount += utf8.RuneCountInString(line)
		if isComment(strings.TrimSpace(line), lang) {
			commentLines++
		}
	}
	tokenCount := float64(max(len(strings.Fields(body)), 1))

	commentRatio := 0.0
	if len(lines) > 0 {
		commentRatio = float64(commentLines) / float64(len(lines))
	}

	b := Breakdown{
		TokenDensity:   clamp(tokenCount/lineCount/tokensPerLine, 0, 1),
		CharDensity:    clamp(float64(max(charCount, 1))/lineCount/charsPerLine, 0, 1),
		IndentQuality:  clamp(indentStability(lines), 0, 1),
		CommentPenalty: clamp(1-math.Min(commentRatio, maxCommentRatio)/maxCommentRatio, 0, 1),
		StructureBonus: structureBonus(lang),
	}
	raw := weightTokenDensity*b.TokenDensity +
		weightCharDensity*b.CharDensity +
		weightIndent*b.IndentQuality +
		weightComment*b.CommentPenalty +
		b.StructureBonus
	b.Score = round4(clamp(raw, 0, 1))
	return b
}

// nonBlankLines splits on '\n', drops a trailing '\r', and skips lines that
// are empty after trimming whitespace.
func nonBlankLines(body string) []string {
	if body == "" {
		return nil
	}
	raw := strings.Split(body, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func indentStability(lines []string) float64 {
	if len(lines) == 0 {
		return emptyStability
	}
	depths := make([]float64, len(lines))
	var sum float64
	for i, line := range lines {
		depth := 0
		for depth < len(line) && (line[depth] == ' ' || line[depth] == '\t') {
			depth++
		}
		depths[i] = float64(depth)
		sum += depths[i]
	}
	mean := sum / float64(len(depths))
	var variance float64
	for _, d := range depths {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(depths))
	return 1 / (1 + variance/indentVarianceDiv)
}

func isComment(trimmed string, lang fragment.Language) bool {
	switch lang {
	case fragment.LanguagePython, fragment.LanguageConfig:
		return strings.HasPrefix(trimmed, "#")
	case fragment.LanguageRust, fragment.LanguageTypeScript:
		return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*")
	default:
		return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//")
	}
}

func structureBonus(lang fragment.Language) float64 {
	switch lang {
	case fragment.LanguagePython, fragment.LanguageRust, fragment.LanguageTypeScript:
		return 0.10
	case fragment.LanguageConfig:
		return 0.05
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
