package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/format"
)

// ToText renders a plain-text numbered reference list, ordered by citation
// number.
func ToText(cits []*citation.Citation) string {
	ordered := make([]*citation.Citation, len(cits))
	copy(ordered, cits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})

	var b strings.Builder
	for _, c := range ordered {
		fmt.Fprintf(&b, "[%d] %s\n", c.Number, format.Entry(c))
	}
	return b.String()
}
