package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// TextGenerator is the language-model client contract the translator needs.
// Provider implementations live in internal/providers.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// sentenceEndRe matches a sentence terminator (Western or CJK) followed by
// whitespace; text is chunked preferentially at these boundaries.
var sentenceEndRe = regexp.MustCompile(`[。．.!?]\s+`)

// BuildTranslationPrompt produces the per-chunk instruction sent to the
// language model.
func BuildTranslationPrompt(sourceText, language string) string {
	if language == "" {
		language = "Japanese"
	}
	return fmt.Sprintf(
		"Task: Translate the following text into natural %s.\n"+
			"Rules:\n"+
			"- Keep numbers, units, URLs, references (e.g., Fig. 1) unchanged where possible.\n"+
			"- Output translation only. Do not add explanations.\n"+
			"- Avoid unnecessary newlines.\n\n"+
			"Text:\n%s",
		language, sourceText)
}

// SplitLongText breaks text into chunks of at most maxChars, preferring
// sentence boundaries and packing sentences greedily. Text with no sentence
// boundaries is split by raw character count.
func SplitLongText(text string, maxChars int) []string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= maxChars {
		return []string{trimmed}
	}

	sentences := splitSentences(trimmed)
	if len(sentences) <= 1 {
		return hardSplit(trimmed, maxChars)
	}

	var chunks []string
	buf := ""
	for _, sentence := range sentences {
		candidate := sentence
		if buf != "" {
			candidate = buf + " " + sentence
		}
		if len(candidate) <= maxChars {
			buf = candidate
			continue
		}
		if buf != "" {
			chunks = append(chunks, buf)
		}
		if len(sentence) <= maxChars {
			buf = sentence
		} else {
			chunks = append(chunks, hardSplit(sentence, maxChars)...)
			buf = ""
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// splitSentences splits after each terminator+whitespace boundary, keeping
// the terminator with its sentence.
func splitSentences(text string) []string {
	matches := sentenceEndRe.FindAllStringIndex(text, -1)
	var sentences []string
	start := 0
	for _, m := range matches {
		// m[0] is the terminator rune start; keep the whole rune with its
		// sentence (。 and ． are multi-byte).
		_, size := utf8.DecodeRuneInString(text[m[0]:])
		end := m[0] + size
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = m[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func hardSplit(text string, maxChars int) []string {
	var parts []string
	for len(text) > maxChars {
		cut := runeCut(text, maxChars)
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// runeCut returns the largest cut index not past limit that falls on a rune
// boundary, so byte-indexed slicing never splits a multi-byte character. A
// limit inside the first rune yields that whole rune.
func runeCut(text string, limit int) int {
	if len(text) <= limit {
		return len(text)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return cut
}

// cleanTranslation strips the fenced-code-block wrapper some models add
// around their answer. Content counts as wrapped only when the reply both
// starts and ends with the fence marker.
func cleanTranslation(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.Trim(cleaned, "`"))
	}
	return cleaned
}

// TranslateText translates one region's text. Text under the limit issues
// exactly one client call; longer text is chunked, translated chunk by chunk
// in order, and rejoined with newlines. Any chunk failure fails the whole
// translation.
func TranslateText(ctx context.Context, text string, client TextGenerator, maxChars int, language string) (string, error) {
	source := strings.TrimSpace(text)
	if source == "" {
		return "", nil
	}

	var translated []string
	for _, chunk := range SplitLongText(source, maxChars) {
		out, err := client.Generate(ctx, BuildTranslationPrompt(chunk, language))
		if err != nil {
			return "", err
		}
		if cleaned := cleanTranslation(out); cleaned != "" {
			translated = append(translated, cleaned)
		}
	}
	return strings.TrimSpace(strings.Join(translated, "\n")), nil
}

// TranslatePageBlocks populates translated text for every block on the page,
// strictly in order. onBlockDone, when non-nil, is invoked after each block
// with (done, total).
func TranslatePageBlocks(ctx context.Context, page PageResult, client TextGenerator, maxChars int, language string, onBlockDone func(done, total int)) (PageResult, error) {
	translated := make([]Block, 0, len(page.Blocks))
	total := len(page.Blocks)
	for i, block := range page.Blocks {
		out, err := TranslateText(ctx, block.Text, client, maxChars, language)
		if err != nil {
			return PageResult{}, fmt.Errorf("translate block %s: %w", block.ID, err)
		}
		translated = append(translated, block.WithTranslation(out))
		if onBlockDone != nil {
			onBlockDone(i+1, total)
		}
	}
	return page.WithBlocks(translated), nil
}
