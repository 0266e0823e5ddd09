package markdown

import (
	"bytes"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// splitFrontMatter separates a leading YAML block delimited by "---" lines
// from the body. The closing delimiter may also be "...". Documents without
// an opening delimiter have no front matter.
func splitFrontMatter(src []byte) (matter []byte, body []byte, err error) {
	src = bytes.TrimPrefix(src, utf8BOM)
	first, rest, _ := cutLine(src)
	if !isDelimiter(first) {
		return nil, src, nil
	}
	start := len(src) - len(rest)
	pos := start
	for {
		line, next, found := cutLine(src[pos:])
		if isDelimiter(line) || isEnd(line) {
			return src[start:pos], next, nil
		}
		if !found {
			return nil, nil, ErrUnterminatedFrontMatter
		}
		pos = len(src) - len(next)
	}
}

// cutLine returns the first line of b without its line terminator, the
// remainder after the terminator, and whether a terminator was found.
func cutLine(b []byte) (line, rest []byte, found bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil, false
	}
	return bytes.TrimSuffix(b[:i], []byte("\r")), b[i+1:], true
}

func isDelimiter(line []byte) bool {
	return string(bytes.TrimRight(line, " \t")) == "---"
}

func isEnd(line []byte) bool {
	return string(bytes.TrimRight(line, " \t")) == "..."
}
