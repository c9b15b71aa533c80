package interactive

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	reader, ok := r.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReader(r)
	}
	return &Prompter{reader: reader, out: w}
}

// ConfirmAction asks a yes/no question. Anything but y or yes, including
// end of input, declines.
func (p *Prompter) ConfirmAction(action, target string) bool {
	fmt.Fprintf(p.out, "\nConfirm running %s for %s (y/N): ", action, target)

	input, err := p.reader.ReadString('\n')
	if err != nil && input == "" {
		return false
	}

	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}
