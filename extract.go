package dvfs

import "regexp"

var (
	ioClassRegex       = regexp.MustCompile(`"IOClass" = "Apple([a-zA-Z0-9]+)PMGR"`)
	voltageStatesRegex = regexp.MustCompile(`"voltage-states(1-sram|5-sram|8|9)" = <([0-9a-fA-F]+)>`)
)

// Extract scans an IORegistry dump for the PMGR chip class and every
// voltage-states table. Only the first chip class counts. Entries come back
// in document order; duplicates are kept. Unrecognised input yields no
// matches rather than an error.
func Extract(text string) (chip string, ok bool, entries []Entry) {
	if m := ioClassRegex.FindStringSubmatch(text); m != nil {
		chip, ok = m[1], true
	}

	for _, m := range voltageStatesRegex.FindAllStringSubmatch(text, -1) {
		entries = append(entries, Entry{Suffix: m[1], Hex: m[2]})
	}

	return chip, ok, entries
}
