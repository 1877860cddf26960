package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// renderBlock renders a single block: heading types become level-3 headings,
// list types a bullet line, everything else plain paragraph text. Translated
// text wins over source text when present.
func renderBlock(block Block) string {
	text := block.TranslatedText
	if text == "" {
		text = block.Text
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	switch strings.ToLower(block.Type) {
	case "title", "heading", "header":
		return "### " + text
	case "list_item", "bullet":
		return "- " + text
	default:
		return text
	}
}

// PageToMarkdown renders a page into its Markdown section. A page with no
// renderable blocks still emits its heading line.
func PageToMarkdown(page PageResult) string {
	var lines []string
	for _, block := range page.Blocks {
		if line := renderBlock(block); line != "" {
			lines = append(lines, line)
		}
	}
	body := strings.TrimSpace(strings.Join(lines, "\n\n"))
	if body == "" {
		return fmt.Sprintf("## Page %d\n", page.Page)
	}
	return fmt.Sprintf("## Page %d\n\n%s\n", page.Page, body)
}

// WritePageMarkdown renders a page and writes it to outputPath, returning the
// rendered markdown.
func WritePageMarkdown(page PageResult, outputPath string) (string, error) {
	markdown := PageToMarkdown(page)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create markdown directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("failed to write page markdown: %w", err)
	}
	return markdown, nil
}

// MergePageMarkdowns concatenates non-empty page sections with a blank line
// between them. The result ends with exactly one trailing newline when
// non-empty and is the empty string otherwise.
func MergePageMarkdowns(pageMarkdowns []string) string {
	var chunks []string
	for _, md := range pageMarkdowns {
		if trimmed := strings.TrimSpace(md); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	if len(chunks) == 0 {
		return ""
	}
	return strings.Join(chunks, "\n\n") + "\n"
}

// WriteResultMarkdown merges all page sections and writes the final document.
func WriteResultMarkdown(pageMarkdowns []string, outputPath string) (string, error) {
	merged := MergePageMarkdowns(pageMarkdowns)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create result directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(merged), 0o644); err != nil {
		return "", fmt.Errorf("failed to write result markdown: %w", err)
	}
	return merged, nil
}
