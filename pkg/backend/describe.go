package backend

import (
	"fmt"
	"math"
	"strings"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/dustin/go-humanize"
)

// describeTables renders per-table bucket-count statistics: number of
// buckets, total entries, mean/min/max/stddev bucket size.
func describeTables(tables []map[string]*roaring.Bitmap) string {
	var b strings.Builder
	for i, table := range tables {
		sizes := make([]float64, 0, len(table))
		for _, bucket := range table {
			sizes = append(sizes, float64(bucket.GetCardinality()))
		}
		formatTableStats(&b, i, sizes)
	}
	return b.String()
}

// formatTableStats writes one table's bucket-count, total-entry, and
// mean/min/max/stddev bucket-size line, in the shared format every
// Backend variant's Describe() uses regardless of how it collected
// sizes (an in-memory roaring.Bitmap per bucket, or a per-digest
// COUNT(*) from SQL).
func formatTableStats(b *strings.Builder, i int, sizes []float64) {
	var total float64
	for _, s := range sizes {
		total += s
	}
	mean, min, max, stddev := bucketStats(sizes)
	fmt.Fprintf(b, "table %d: %s buckets, %s entries, mean=%.2f min=%.0f max=%.0f stddev=%.2f\n",
		i, humanize.Comma(int64(len(sizes))), humanize.Comma(int64(total)), mean, min, max, stddev)
}

func bucketStats(sizes []float64) (mean, min, max, stddev float64) {
	if len(sizes) == 0 {
		return 0, 0, 0, 0
	}
	min, max = sizes[0], sizes[0]
	var sum float64
	for _, s := range sizes {
		sum += s
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	mean = sum / float64(len(sizes))
	var variance float64
	for _, s := range sizes {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(sizes))
	stddev = math.Sqrt(variance)
	return mean, min, max, stddev
}
