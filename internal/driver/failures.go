package driver

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/relaunch/pkg/check"
)

// ExtractFailures returns every failure block in r. A block is a line that
// starts with the failure marker plus the indented lines that follow it.
func ExtractFailures(r io.Reader) ([]string, error) {
	blocks := []string{}
	var cur *strings.Builder

	flush := func() {
		if cur != nil {
			blocks = append(blocks, cur.String())
			cur = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, check.Marker):
			flush()
			cur = &strings.Builder{}
			cur.WriteString(line)
			cur.WriteByte('\n')
		case cur != nil && strings.HasPrefix(line, " "):
			cur.WriteString(line)
			cur.WriteByte('\n')
		default:
			flush()
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}
	return blocks, nil
}
