package diff

import "github.com/pmezard/go-difflib/difflib"

type match struct {
	i, j int
}

// matcher finds a longest common subsequence of two line slices with the
// linear-space variant of Myers' O(ND) algorithm. The result is a minimal
// edit script and depends only on the input.
type matcher struct {
	a, b    []string
	forward []int
	reverse []int
	matches []match
}

func newMatcher(a, b []string) *matcher {
	size := 2*(len(a)+len(b)) + 4
	return &matcher{a: a, b: b, forward: make([]int, size), reverse: make([]int, size)}
}

// opCodes returns the edit script as difflib opcodes. Adjacent deletes and
// inserts between two equal runs form a single replace.
func (m *matcher) opCodes() []difflib.OpCode {
	m.matches = m.matches[:0]
	m.compare(0, len(m.a), 0, len(m.b))

	var codes []difflib.OpCode
	i, j := 0, 0
	for k := 0; k < len(m.matches); k++ {
		first := m.matches[k]
		if gap, ok := gapCode(i, first.i, j, first.j); ok {
			codes = append(codes, gap)
		}
		for k+1 < len(m.matches) && m.matches[k+1].i == m.matches[k].i+1 && m.matches[k+1].j == m.matches[k].j+1 {
			k++
		}
		last := m.matches[k]
		codes = append(codes, difflib.OpCode{Tag: 'e', I1: first.i, I2: last.i + 1, J1: first.j, J2: last.j + 1})
		i, j = last.i+1, last.j+1
	}
	if gap, ok := gapCode(i, len(m.a), j, len(m.b)); ok {
		codes = append(codes, gap)
	}
	return codes
}

func gapCode(i1, i2, j1, j2 int) (difflib.OpCode, bool) {
	switch {
	case i1 < i2 && j1 < j2:
		return difflib.OpCode{Tag: 'r', I1: i1, I2: i2, J1: j1, J2: j2}, true
	case i1 < i2:
		return difflib.OpCode{Tag: 'd', I1: i1, I2: i2, J1: j1, J2: j1}, true
	case j1 < j2:
		return difflib.OpCode{Tag: 'i', I1: i1, I2: i1, J1: j1, J2: j2}, true
	}
	return difflib.OpCode{}, false
}

// compare appends the matches of a[a0:a1] and b[b0:b1] in increasing order.
func (m *matcher) compare(a0, a1, b0, b1 int) {
	for a0 < a1 && b0 < b1 && m.a[a0] == m.b[b0] {
		m.matches = append(m.matches, match{a0, b0})
		a0, b0 = a0+1, b0+1
	}
	suffix := 0
	for a0 < a1 && b0 < b1 && m.a[a1-1] == m.b[b1-1] {
		a1, b1 = a1-1, b1-1
		suffix++
	}
	if a0 < a1 && b0 < b1 {
		x, y, u, v := m.middleSnake(a0, a1, b0, b1)
		m.compare(a0, x, b0, y)
		for ; x < u; x, y = x+1, y+1 {
			m.matches = append(m.matches, match{x, y})
		}
		m.compare(u, a1, v, b1)
	}
	for k := 0; k < suffix; k++ {
		m.matches = append(m.matches, match{a1 + k, b1 + k})
	}
}

// middleSnake returns the snake (x,y)->(u,v) in the middle of a shortest
// edit path through a[a0:a1] and b[b0:b1]. Both ranges are non-empty and
// differ in their first and last lines.
func (m *matcher) middleSnake(a0, a1, b0, b1 int) (x, y, u, v int) {
	n, mm := a1-a0, b1-b0
	delta := n - mm
	odd := delta&1 != 0
	offset := n + mm + 1
	fw, rv := m.forward, m.reverse
	fw[offset+1], rv[offset+1] = 0, 0
	for d := 0; d <= (n+mm+1)/2; d++ {
		for k := -d; k <= d; k += 2 {
			var px int
			if k == -d || (k != d && fw[offset+k-1] < fw[offset+k+1]) {
				px = fw[offset+k+1]
			} else {
				px = fw[offset+k-1] + 1
			}
			py := px - k
			sx, sy := px, py
			for px < n && py < mm && m.a[a0+px] == m.b[b0+py] {
				px, py = px+1, py+1
			}
			fw[offset+k] = px
			if odd {
				if kr := delta - k; kr >= -(d-1) && kr <= d-1 && px+rv[offset+kr] >= n {
					return a0 + sx, b0 + sy, a0 + px, b0 + py
				}
			}
		}
		for k := -d; k <= d; k += 2 {
			var px int
			if k == -d || (k != d && rv[offset+k-1] < rv[offset+k+1]) {
				px = rv[offset+k+1]
			} else {
				px = rv[offset+k-1] + 1
			}
			py := px - k
			sx, sy := px, py
			for px < n && py < mm && m.a[a1-1-px] == m.b[b1-1-py] {
				px, py = px+1, py+1
			}
			rv[offset+k] = px
			if !odd {
				if kf := delta - k; kf >= -d && kf <= d && fw[offset+kf]+px >= n {
					return a0 + n - px, b0 + mm - py, a0 + n - sx, b0 + mm - sy
				}
			}
		}
	}
	// unreachable for valid input: a path of at most n+mm edits always exists
	return a0, b0, a0, b0
}

// groupOpCodes splits codes into hunks with up to context unchanged lines on
// either side, following difflib's GetGroupedOpCodes.
func groupOpCodes(codes []difflib.OpCode, context int) [][]difflib.OpCode {
	if len(codes) == 0 {
		return nil
	}
	codes = append([]difflib.OpCode(nil), codes...)
	if c := codes[0]; c.Tag == 'e' {
		codes[0] = difflib.OpCode{Tag: c.Tag, I1: max(c.I1, c.I2-context), I2: c.I2, J1: max(c.J1, c.J2-context), J2: c.J2}
	}
	if c := codes[len(codes)-1]; c.Tag == 'e' {
		codes[len(codes)-1] = difflib.OpCode{Tag: c.Tag, I1: c.I1, I2: min(c.I2, c.I1+context), J1: c.J1, J2: min(c.J2, c.J1+context)}
	}
	var groups [][]difflib.OpCode
	var group []difflib.OpCode
	for _, c := range codes {
		i1, i2, j1, j2 := c.I1, c.I2, c.J1, c.J2
		if c.Tag == 'e' && i2-i1 > 2*context {
			group = append(group, difflib.OpCode{Tag: c.Tag, I1: i1, I2: min(i2, i1+context), J1: j1, J2: min(j2, j1+context)})
			groups = append(groups, group)
			group = nil
			i1, j1 = max(i1, i2-context), max(j1, j2-context)
		}
		group = append(group, difflib.OpCode{Tag: c.Tag, I1: i1, I2: i2, J1: j1, J2: j2})
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].Tag == 'e') {
		groups = append(groups, group)
	}
	return groups
}
