package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// WeekBucket aggregates signed document totals for one calendar week
// (Monday-start).
type WeekBucket struct {
	WeekStart     time.Time       `json:"week_start"`
	NetTotal      decimal.Decimal `json:"net_total"`
	DocumentCount int             `json:"document_count"`
}

// WeeklyNetTotals buckets documents by the week of their order date.
// Documents with an unknown date cannot be placed in any week and are
// counted in excluded instead — they still participate in the overall
// expected net total, just not in dated views.
func WeeklyNetTotals(docs []NormalizedDocument) (buckets []WeekBucket, excluded int) {
	byWeek := make(map[time.Time]*WeekBucket)
	for _, doc := range docs {
		if doc.OrderDate == nil {
			excluded++
			continue
		}
		start := weekStart(*doc.OrderDate)
		b := byWeek[start]
		if b == nil {
			b = &WeekBucket{WeekStart: start}
			byWeek[start] = b
		}
		b.NetTotal = b.NetTotal.Add(doc.DocumentTotal)
		b.DocumentCount++
	}

	buckets = make([]WeekBucket, 0, len(byWeek))
	for _, b := range byWeek {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].WeekStart.Before(buckets[j].WeekStart)
	})
	return buckets, excluded
}

func weekStart(d time.Time) time.Time {
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return d.AddDate(0, 0, -offset)
}
