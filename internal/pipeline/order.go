package pipeline

import "sort"

// Reading-order reconstruction is a heuristic: usually correct, not verified.
// Two-column layout is detected only when enough regions exist and the largest
// horizontal gap between region centers is wide relative to the page.
const (
	// twoColumnMinBlocks gates column detection; below it pages sort as a
	// single column.
	twoColumnMinBlocks = 6
	// twoColumnGapRatio is the fraction of estimated page width the largest
	// center gap must exceed to count as a column separator.
	twoColumnGapRatio = 0.14
	// twoColumnMinSide is the minimum region count required on each side of
	// a candidate split.
	twoColumnMinSide = 2
)

type sortableBlock struct {
	block Block
	x1    float64
	y1    float64
	x2    float64
}

func (s sortableBlock) centerX() float64 {
	return (s.x1 + s.x2) / 2.0
}

// OrderPageBlocks returns the page with its blocks reordered for natural
// top-to-bottom, left-to-right reading.
func OrderPageBlocks(page PageResult) PageResult {
	return page.WithBlocks(sortInReadingOrder(page.Blocks, page.ImgW))
}

func sortInReadingOrder(blocks []Block, pageWidth int) []Block {
	if len(blocks) == 0 {
		return nil
	}

	items := make([]sortableBlock, len(blocks))
	for i, b := range blocks {
		items[i] = sortableBlock{block: b, x1: b.BBox[0], y1: b.BBox[1], x2: b.BBox[2]}
	}

	estimatedWidth := estimatePageWidth(items, pageWidth)
	splitX, ok := chooseTwoColumnSplit(items, estimatedWidth)
	if !ok {
		sortByPosition(items)
		return collectBlocks(items)
	}

	var left, right []sortableBlock
	for _, item := range items {
		if item.centerX() <= splitX {
			left = append(left, item)
		} else {
			right = append(right, item)
		}
	}
	sortByPosition(left)
	sortByPosition(right)
	return collectBlocks(append(left, right...))
}

// estimatePageWidth uses the supplied width when positive, else the span of
// region extents, floored at 1 to avoid degenerate division.
func estimatePageWidth(items []sortableBlock, pageWidth int) float64 {
	if pageWidth > 0 {
		return float64(pageWidth)
	}
	minX, maxX := items[0].x1, items[0].x2
	for _, item := range items[1:] {
		if item.x1 < minX {
			minX = item.x1
		}
		if item.x2 > maxX {
			maxX = item.x2
		}
	}
	if span := maxX - minX; span > 1.0 {
		return span
	}
	return 1.0
}

// chooseTwoColumnSplit finds the largest gap between sorted region centers
// and accepts it as a column separator only when it is wide enough and leaves
// enough regions on both sides.
func chooseTwoColumnSplit(items []sortableBlock, estimatedWidth float64) (float64, bool) {
	if len(items) < twoColumnMinBlocks {
		return 0, false
	}

	centers := make([]float64, len(items))
	for i, item := range items {
		centers[i] = item.centerX()
	}
	sort.Float64s(centers)

	largestGap := 0.0
	splitX := 0.0
	for i := 1; i < len(centers); i++ {
		if gap := centers[i] - centers[i-1]; gap > largestGap {
			largestGap = gap
			splitX = (centers[i-1] + centers[i]) / 2.0
		}
	}

	if largestGap < estimatedWidth*twoColumnGapRatio {
		return 0, false
	}

	leftCount := 0
	for _, item := range items {
		if item.centerX() <= splitX {
			leftCount++
		}
	}
	rightCount := len(items) - leftCount
	if leftCount < twoColumnMinSide || rightCount < twoColumnMinSide {
		return 0, false
	}
	return splitX, true
}

func sortByPosition(items []sortableBlock) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].y1 != items[j].y1 {
			return items[i].y1 < items[j].y1
		}
		return items[i].x1 < items[j].x1
	})
}

func collectBlocks(items []sortableBlock) []Block {
	blocks := make([]Block, len(items))
	for i, item := range items {
		blocks[i] = item.block
	}
	return blocks
}
