package generate

import (
	"context"
	"regexp"
	"strings"

	"github.com/starford/hypermind/internal/models"
)

var (
	sentenceRe = regexp.MustCompile(`[.!?;\n]+`)
	wordRe     = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'-]*`)
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be been but by can could did do does for from had has
		have he her his i if in into is it its of on or our she so such than that the their them then there these
		they this those to was we were what when where which who will with would you your not no`) {
		stopwords[w] = struct{}{}
	}
}

// Heuristic is an offline generator: every sentence becomes a chain of its
// content words, split into overlapping paths of at most three symbols.
type Heuristic struct{}

// Generate implements Generator.
func (Heuristic) Generate(ctx context.Context, input string, _ models.LLM, emit EmitFunc) error {
	seen := make(map[string]struct{})
	for _, sentence := range sentenceRe.Split(input, -1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		words := contentWords(sentence)
		for _, edge := range chain(words) {
			key := strings.Join(edge, "\x1f")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if err := emit(edge); err != nil {
				return err
			}
		}
	}
	return nil
}

func contentWords(sentence string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(sentence, -1) {
		if _, stop := stopwords[strings.ToLower(w)]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func chain(words []string) [][]string {
	if len(words) < 2 {
		return nil
	}
	var out [][]string
	for i := 0; i < len(words)-1; i += 2 {
		end := min(i+3, len(words))
		out = append(out, append([]string(nil), words[i:end]...))
		if end == len(words) {
			break
		}
	}
	return out
}
