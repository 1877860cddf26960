// Package pipeline implements the document processing pipeline: PDF page
// rasterization, OCR response normalization, reading-order reconstruction,
// chunked translation, and Markdown assembly.
package pipeline

// BBox is a bounding box as [x1, y1, x2, y2] in image pixels. All zeros when
// the OCR source supplied no geometry.
type BBox [4]float64

// IsZero reports whether the box carries no geometry.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Block is one OCR-detected text region on a page.
type Block struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	BBox           BBox   `json:"bbox"`
	Text           string `json:"text"`
	TranslatedText string `json:"translated_text,omitempty"`
	Page           int    `json:"page"`
}

// WithTranslation returns a copy of the block with the translated text set.
func (b Block) WithTranslation(text string) Block {
	b.TranslatedText = text
	return b
}

// PageResult is the per-page unit of work flowing through the pipeline.
type PageResult struct {
	Page     int     `json:"page"`
	ImgW     int     `json:"img_w"`
	ImgH     int     `json:"img_h"`
	Blocks   []Block `json:"blocks"`
	Markdown string  `json:"markdown,omitempty"`
}

// WithBlocks returns a copy of the page with the block list replaced.
func (p PageResult) WithBlocks(blocks []Block) PageResult {
	p.Blocks = blocks
	return p
}

// WithDimensions returns a copy of the page with pixel dimensions set.
func (p PageResult) WithDimensions(w, h int) PageResult {
	p.ImgW = w
	p.ImgH = h
	return p
}
