package eval

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/fusion/model"
)

// Instance is one analogy question: A is to AStar as B is to BStar.
type Instance struct {
	Section string
	A       string
	AStar   string
	B       string
	BStar   string
	// Line is the 1-based line number in the source file.
	Line int
}

// Parse reads an analogy file. Blank lines are ignored.
func Parse(r io.Reader) ([]Instance, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		instances []Instance
		section   string
		line      int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if name, ok := strings.CutPrefix(text, ":"); ok {
			section = strings.TrimSpace(name)
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, model.NewFormatError("analogies", fmt.Sprintf("line %d: expected 4 words, got %d", line, len(fields)), nil)
		}
		instances = append(instances, Instance{
			Section: section,
			A:       fields[0],
			AStar:   fields[1],
			B:       fields[2],
			BStar:   fields[3],
			Line:    line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, model.NewFormatError("analogies", "read", err)
	}
	return instances, nil
}
