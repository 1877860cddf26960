package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OCR backends return wildly different JSON shapes. Normalization applies an
// ordered set of extraction strategies and takes the first one that yields at
// least one non-empty block:
//
//  1. object with a recognized block list (blocks/elements/results, or nested
//     one level under "data")
//  2. chat-completion wrapper: choices[0].message.content treated as a blob
//  3. blob parsed as JSON array/object with the same field sniffing, falling
//     back to plain-text paragraph segmentation
//
// Given identical input the output is fully deterministic.

const (
	// maxBlobChars bounds the total text considered from a model-style reply.
	maxBlobChars = 20000
	// maxParagraphChars bounds a single segmented paragraph.
	maxParagraphChars = 2000
	// dedupePrefixLen is the normalized prefix compared when dropping
	// consecutive duplicate paragraphs.
	dedupePrefixLen = 80

	defaultBlockType = "paragraph"
)

var (
	textKeys      = []string{"text", "content", "ocr_text", "value"}
	blockListKeys = []string{"blocks", "elements", "results"}
	bboxKeys      = []string{"bbox", "box", "coordinates"}
	widthKeys     = []string{"img_w", "width", "image_width", "w"}
	heightKeys    = []string{"img_h", "height", "image_height", "h"}
)

// NormalizeOCRResult converts a raw decoded OCR response into a PageResult.
// It never fails: an unrecognizable payload yields a page with no blocks.
func NormalizeOCRResult(raw any, page int) PageResult {
	var blocks []Block
	var imgW, imgH int

	if obj, ok := raw.(map[string]any); ok {
		blocks = blocksFromObject(obj, page, bboxKeys)
		imgW, imgH = extractImageSize(obj)

		if len(blocks) == 0 {
			if content := contentFromChoices(obj); content != "" {
				blocks = parseTextBlob(content, page)
			}
		}
	}

	if len(blocks) == 0 {
		if arr, ok := raw.([]any); ok {
			blocks = blocksFromArray(arr, page)
		}
	}

	return PageResult{Page: page, ImgW: imgW, ImgH: imgH, Blocks: blocks}
}

// blocksFromObject applies the block-list search to a JSON object. Items with
// empty text are dropped; missing ids and types get defaults.
func blocksFromObject(obj map[string]any, page int, geomKeys []string) []Block {
	items := findBlockList(obj)
	blocks := make([]Block, 0, len(items))
	for i, item := range items {
		text := extractText(item)
		if text == "" {
			continue
		}
		blocks = append(blocks, Block{
			ID:   blockID(item, page, i+1),
			Type: blockType(item),
			BBox: extractBBox(item, geomKeys),
			Text: text,
			Page: page,
		})
	}
	return blocks
}

// findBlockList returns the first recognized list of objects in raw, looking
// one level under "data" as a last candidate.
func findBlockList(obj map[string]any) []map[string]any {
	candidates := make([]any, 0, len(blockListKeys)+1)
	for _, key := range blockListKeys {
		candidates = append(candidates, obj[key])
	}
	if data, ok := obj["data"].(map[string]any); ok {
		candidates = append(candidates, data["blocks"])
	}

	for _, candidate := range candidates {
		list, ok := candidate.([]any)
		if !ok {
			continue
		}
		items := make([]map[string]any, 0, len(list))
		for _, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				items = append(items, m)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// extractText reads the first recognized text-bearing key, whitespace-trimmed.
func extractText(item map[string]any) string {
	for _, key := range textKeys {
		if s, ok := item[key].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func blockID(item map[string]any, page, index int) string {
	for _, key := range []string{"id", "index"} {
		switch v := item[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%v", v)
		}
	}
	return fmt.Sprintf("p%03d-b%04d", page, index)
}

func blockType(item map[string]any) string {
	for _, key := range []string{"type", "label"} {
		if s, ok := item[key].(string); ok && s != "" {
			return s
		}
	}
	return defaultBlockType
}

// extractBBox reads geometry from the first present candidate key. Anything
// malformed degrades to a zero box rather than failing.
func extractBBox(item map[string]any, keys []string) BBox {
	for _, key := range keys {
		if v, ok := item[key]; ok && v != nil {
			return asBBox(v)
		}
	}
	return BBox{}
}

// asBBox coerces a flat 4-number array or an {x1,y1,x2,y2} object into a box.
func asBBox(value any) BBox {
	switch v := value.(type) {
	case []any:
		if len(v) != 4 {
			return BBox{}
		}
		var box BBox
		for i, entry := range v {
			f, ok := asFloat(entry)
			if !ok {
				return BBox{}
			}
			box[i] = f
		}
		return box
	case map[string]any:
		var box BBox
		for i, key := range []string{"x1", "y1", "x2", "y2"} {
			f, ok := asFloat(v[key])
			if !ok {
				return BBox{}
			}
			box[i] = f
		}
		return box
	}
	return BBox{}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	}
	return 0, false
}

// contentFromChoices digs choices[0].message.content out of a
// chat-completion-style response.
func contentFromChoices(obj map[string]any) string {
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := first["message"].(map[string]any)
	if !ok {
		return ""
	}
	content, ok := message["content"].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(content)
}

// blocksFromArray handles a bare JSON array of block items, optionally nested
// one level (array-of-arrays: the first inner array wins). Geometry is read
// preferentially from bbox_2d, the shape some vision models emit.
func blocksFromArray(arr []any, page int) []Block {
	if len(arr) == 0 {
		return nil
	}
	items := arr
	if inner, ok := arr[0].([]any); ok {
		items = inner
	}

	geomKeys := append([]string{"bbox_2d"}, bboxKeys...)
	blocks := make([]Block, 0, len(items))
	for i, entry := range items {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		text := extractText(item)
		if text == "" {
			continue
		}
		blocks = append(blocks, Block{
			ID:   blockID(item, page, i+1),
			Type: blockType(item),
			BBox: extractBBox(item, geomKeys),
			Text: text,
			Page: page,
		})
	}
	return blocks
}

// parseTextBlob is the last-resort strategy for a model-style text reply:
// structured parsing first, plain-text segmentation when that fails.
func parseTextBlob(blob string, page int) []Block {
	stripped := strings.TrimSpace(blob)
	if stripped == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(stripped), &parsed); err == nil {
		switch v := parsed.(type) {
		case []any:
			if blocks := blocksFromArray(v, page); len(blocks) > 0 {
				return blocks
			}
		case map[string]any:
			if blocks := blocksFromObject(v, page, bboxKeys); len(blocks) > 0 {
				return blocks
			}
		}
	}

	return segmentPlainText(stripped, page)
}

// segmentPlainText splits a text blob into paragraph blocks: blank-line
// boundaries, consecutive-duplicate suppression, bounded paragraph size.
func segmentPlainText(text string, page int) []Block {
	if len(text) > maxBlobChars {
		text = text[:runeCut(text, maxBlobChars)]
	}

	var paragraphs []string
	lastPrefix := ""
	for _, part := range strings.Split(text, "\n\n") {
		para := strings.TrimSpace(part)
		if para == "" {
			continue
		}
		prefix := dedupePrefix(para)
		if prefix == lastPrefix {
			continue
		}
		lastPrefix = prefix
		paragraphs = append(paragraphs, splitLongParagraph(para)...)
	}

	blocks := make([]Block, 0, len(paragraphs))
	for i, para := range paragraphs {
		blocks = append(blocks, Block{
			ID:   fmt.Sprintf("p%03d-b%04d", page, i+1),
			Type: defaultBlockType,
			Text: para,
			Page: page,
		})
	}
	return blocks
}

// dedupePrefix normalizes a paragraph into the key used for consecutive
// duplicate suppression.
func dedupePrefix(para string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(para), " "))
	if len(normalized) > dedupePrefixLen {
		normalized = normalized[:runeCut(normalized, dedupePrefixLen)]
	}
	return normalized
}

// splitLongParagraph bounds a paragraph to maxParagraphChars, preferring a
// newline or sentence boundary closest to, but not past, the limit.
func splitLongParagraph(para string) []string {
	if len(para) <= maxParagraphChars {
		return []string{para}
	}

	var parts []string
	rest := para
	for len(rest) > maxParagraphChars {
		window := rest[:runeCut(rest, maxParagraphChars)]
		cut := strings.LastIndex(window, "\n")
		if idx := strings.LastIndex(window, ". "); idx >= 0 && idx+2 > cut {
			cut = idx + 2
		}
		if cut <= 0 {
			cut = len(window)
		}
		part := strings.TrimSpace(rest[:cut])
		if part != "" {
			parts = append(parts, part)
		}
		rest = strings.TrimSpace(rest[cut:])
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// extractImageSize reads page pixel dimensions from recognized keys. Zero
// when absent or non-numeric; callers backfill from the rendered image.
func extractImageSize(obj map[string]any) (int, int) {
	width := firstIntKey(obj, widthKeys)
	height := firstIntKey(obj, heightKeys)
	return width, height
}

func firstIntKey(obj map[string]any, keys []string) int {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if f, ok := asFloat(v); ok {
				return int(f)
			}
			return 0
		}
	}
	return 0
}
