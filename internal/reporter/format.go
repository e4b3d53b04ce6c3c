package reporter

import (
	"strconv"
	"strings"
)

// Counters formats an array of counters as "1/0/3". Reporters use this for their error and event
// breakdowns so that the position of each counter is the only thing a reader needs to know.
func Counters(vals []int) string {
	var sb strings.Builder
	for ix, v := range vals {
		if ix > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.Itoa(v))
	}

	return sb.String()
}

// Sum totals an array of counters.
func Sum(vals []int) (total int) {
	for _, v := range vals {
		total += v
	}

	return
}
