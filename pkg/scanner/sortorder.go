package scanner

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hondanabooks/hondana/pkg/parser"
)

// UpdateSortOrder computes the persisted chapter sort key for every record in
// one series group, independently per volume label. The result is stable and
// reproducible for the same input set.
func UpdateSortOrder(records []*parser.FileRecord) map[*parser.FileRecord]float64 {
	orders := make(map[*parser.FileRecord]float64, len(records))

	byVolume := make(map[string][]*parser.FileRecord)
	var labels []string
	for _, record := range records {
		label := record.VolumeLabel()
		if _, ok := byVolume[label]; !ok {
			labels = append(labels, label)
		}
		byVolume[label] = append(byVolume[label], record)
	}

	for _, label := range labels {
		group := byVolume[label]
		if allSpecial(group) {
			orderSpecials(group, orders)
			continue
		}
		orderByChapter(group, orders)
	}

	return orders
}

func allSpecial(group []*parser.FileRecord) bool {
	for _, record := range group {
		if !record.IsSpecial {
			return false
		}
	}
	return len(group) > 0
}

// orderSpecials assigns sequential integer orders: by special index when any
// record carries one, by natural filename ordering otherwise.
func orderSpecials(group []*parser.FileRecord, orders map[*parser.FileRecord]float64) {
	hasIndex := false
	for _, record := range group {
		if record.SpecialIndex > 0 {
			hasIndex = true
			break
		}
	}

	sorted := make([]*parser.FileRecord, len(group))
	copy(sorted, group)
	if hasIndex {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].SpecialIndex < sorted[j].SpecialIndex
		})
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			return naturalLess(baseName(sorted[i].Filename), baseName(sorted[j].Filename))
		})
	}

	for i, record := range sorted {
		orders[record] = float64(i)
	}
}

// orderByChapter sorts by the float value of the chapter label, unparsable
// labels last. The parsed value itself is the order; consecutive duplicates
// get a +0.1 bump so ordering stays strict.
func orderByChapter(group []*parser.FileRecord, orders map[*parser.FileRecord]float64) {
	sorted := make([]*parser.FileRecord, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return chapterValue(sorted[i]) < chapterValue(sorted[j])
	})

	prev := math.Inf(-1)
	counter := 0.0
	for _, record := range sorted {
		var order float64
		if value, ok := parser.ParseNumber(record.Chapter); ok {
			order = value
		} else {
			order = counter
			counter++
		}
		if order <= prev {
			order = prev + 0.1
		}
		orders[record] = order
		prev = order
	}
}

func chapterValue(record *parser.FileRecord) float64 {
	if value, ok := parser.ParseNumber(record.Chapter); ok {
		return value
	}
	return math.Inf(1)
}

func baseName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// naturalLess compares strings the way a human reads them: runs of digits
// compare numerically, everything else byte-wise case-insensitively.
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		aDigits, aRest := splitDigits(a)
		bDigits, bRest := splitDigits(b)

		if aDigits != "" && bDigits != "" {
			aTrim := strings.TrimLeft(aDigits, "0")
			bTrim := strings.TrimLeft(bDigits, "0")
			if len(aTrim) != len(bTrim) {
				return len(aTrim) < len(bTrim)
			}
			if aTrim != bTrim {
				return aTrim < bTrim
			}
			a, b = aRest, bRest
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func splitDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
