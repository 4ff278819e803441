package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxPassageLine = 1 << 20

// ReadPassages reads one JSON passage per line:
//
//	{"content": "...", "article_number": 4, "paragraph_number": 2}
//
// Blank lines are skipped. Unknown fields, invalid passages and repeated
// (article, paragraph) keys fail with the offending line number.
func ReadPassages(r io.Reader) ([]Passage, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxPassageLine)

	var out []Passage
	seen := make(map[Key]int)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		var p Passage
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if first, dup := seen[p.Key()]; dup {
			return nil, fmt.Errorf("line %d: %s already defined on line %d", line, p.Key(), first)
		}
		seen[p.Key()] = line
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read passages: %w", err)
	}
	return out, nil
}
