package google

import (
	"fmt"
	"strconv"
	"strings"
)

// parseID reads a transaction id from a column A cell. Header and blank
// cells report false.
func parseID(cell any) (int64, bool) {
	switch v := cell.(type) {
	case float64:
		if v <= 0 || v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	default:
		s := strings.TrimSpace(fmt.Sprint(v))
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
}

func parseIDs(column [][]any) []int64 {
	ids := make([]int64, 0, len(column))
	for _, row := range column {
		if len(row) == 0 {
			continue
		}
		if id, ok := parseID(row[0]); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// findRow returns the 1-based sheet row holding id, or 0.
func findRow(column [][]any, id int64) int {
	for i, row := range column {
		if len(row) == 0 {
			continue
		}
		if got, ok := parseID(row[0]); ok && got == id {
			return i + 1
		}
	}
	return 0
}
