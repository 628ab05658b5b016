package reply

import "strings"

// Fragment is a run of consecutive lines sharing the same quoting and
// header state.
type Fragment struct {
	Quoted    bool
	Signature bool
	Headers   bool
	Hidden    bool

	lines []string
	raw   string
}

// finish freezes the fragment. Lines were gathered bottom-up.
func (f *Fragment) finish() {
	for i, j := 0, len(f.lines)-1; i < j; i, j = i+1, j-1 {
		f.lines[i], f.lines[j] = f.lines[j], f.lines[i]
	}
	f.raw = strings.Join(f.lines, "\n")
}

// Lines returns the fragment's physical lines in original order.
func (f *Fragment) Lines() []string {
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

// Raw returns the fragment text exactly as it appeared in the body.
func (f *Fragment) Raw() string { return f.raw }

// Content is the fragment text with surrounding whitespace removed.
func (f *Fragment) Content() string { return strings.TrimSpace(f.raw) }

func (f *Fragment) String() string { return f.Content() }
