package providers

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

func init() {
	RegisterOCRPlugin("tesseract", tesseractParse)
}

// tesseractParse runs a local Tesseract recognition over the page image and
// emits the block-list shape the normalizer understands. Paragraph-level
// boxes keep the layout heuristic usable for plain scans.
func tesseractParse(ctx context.Context, imagePath string) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("recognize paragraphs: %w", err)
	}

	blocks := make([]any, 0, len(boxes))
	var maxX, maxY float64
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		x1, y1 := float64(b.Box.Min.X), float64(b.Box.Min.Y)
		x2, y2 := float64(b.Box.Max.X), float64(b.Box.Max.Y)
		maxX = math.Max(maxX, x2)
		maxY = math.Max(maxY, y2)
		blocks = append(blocks, map[string]any{
			"type": "paragraph",
			"text": text,
			"bbox": []any{x1, y1, x2, y2},
		})
	}

	if len(blocks) == 0 {
		// No paragraph boxes found; fall back to the whole-page text.
		text, err := c.Text()
		if err != nil {
			return nil, fmt.Errorf("recognize text: %w", err)
		}
		if t := strings.TrimSpace(text); t != "" {
			blocks = append(blocks, map[string]any{
				"type": "paragraph",
				"text": t,
			})
		}
	}

	return map[string]any{
		"blocks": blocks,
		"width":  maxX,
		"height": maxY,
	}, nil
}
