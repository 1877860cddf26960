package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPageToMarkdown(t *testing.T) {
	page := PageResult{
		Page: 3,
		Blocks: []Block{
			{Type: "title", Text: "Chapter One"},
			{Type: "paragraph", Text: "Body text."},
			{Type: "list_item", Text: "a bullet"},
			{Type: "Heading", Text: "Case Insensitive"},
		},
	}

	got := PageToMarkdown(page)
	want := "## Page 3\n\n### Chapter One\n\nBody text.\n\n- a bullet\n\n### Case Insensitive\n"
	if got != want {
		t.Errorf("PageToMarkdown = %q, want %q", got, want)
	}
}

func TestPageToMarkdownTranslationWins(t *testing.T) {
	page := PageResult{
		Page: 1,
		Blocks: []Block{
			{Type: "paragraph", Text: "source", TranslatedText: "訳文"},
			{Type: "paragraph", Text: "untranslated"},
		},
	}

	got := PageToMarkdown(page)
	if !strings.Contains(got, "訳文") {
		t.Error("translated text should win")
	}
	if strings.Contains(got, "source") {
		t.Error("source text should be replaced by its translation")
	}
	if !strings.Contains(got, "untranslated") {
		t.Error("blocks without translation fall back to source text")
	}
}

func TestPageToMarkdownEmptyPage(t *testing.T) {
	got := PageToMarkdown(PageResult{Page: 7})
	if got != "## Page 7\n" {
		t.Errorf("empty page = %q, want heading only", got)
	}

	// Blocks with only whitespace render nothing either.
	got = PageToMarkdown(PageResult{Page: 7, Blocks: []Block{{Type: "paragraph", Text: "  "}}})
	if got != "## Page 7\n" {
		t.Errorf("whitespace-only page = %q, want heading only", got)
	}
}

func TestMergePageMarkdowns(t *testing.T) {
	merged := MergePageMarkdowns([]string{
		"## Page 1\n\nfirst\n",
		"",
		"## Page 2\n\nsecond\n",
	})
	want := "## Page 1\n\nfirst\n\n## Page 2\n\nsecond\n"
	if merged != want {
		t.Errorf("merged = %q, want %q", merged, want)
	}
	if strings.HasSuffix(merged, "\n\n") {
		t.Error("merged document must end with exactly one newline")
	}
}

func TestMergePageMarkdownsEmpty(t *testing.T) {
	if got := MergePageMarkdowns(nil); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
	if got := MergePageMarkdowns([]string{"  ", "\n"}); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestWritePageAndResultMarkdown(t *testing.T) {
	dir := t.TempDir()

	page := PageResult{Page: 1, Blocks: []Block{{Type: "paragraph", Text: "hello"}}}
	pagePath := filepath.Join(dir, "md", "001.md")
	pageMD, err := WritePageMarkdown(page, pagePath)
	if err != nil {
		t.Fatalf("WritePageMarkdown failed: %v", err)
	}

	onDisk, err := os.ReadFile(pagePath)
	if err != nil {
		t.Fatalf("read page markdown: %v", err)
	}
	if string(onDisk) != pageMD {
		t.Error("returned markdown differs from file contents")
	}

	resultPath := filepath.Join(dir, "md", "result.md")
	merged, err := WriteResultMarkdown([]string{pageMD}, resultPath)
	if err != nil {
		t.Fatalf("WriteResultMarkdown failed: %v", err)
	}
	onDisk, err = os.ReadFile(resultPath)
	if err != nil {
		t.Fatalf("read result markdown: %v", err)
	}
	if string(onDisk) != merged {
		t.Error("returned result differs from file contents")
	}
	if !strings.HasPrefix(merged, "## Page 1") {
		t.Errorf("unexpected result: %q", merged)
	}
}
