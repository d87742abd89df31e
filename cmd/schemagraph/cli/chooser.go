package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/faucetdb/schemagraph/internal/graph"
)

// promptChooser asks the user which upstream type to bind when a column's
// native type matches several. An answer is remembered per native type so
// each ambiguity is asked about once per run.
type promptChooser struct {
	in  *bufio.Reader
	out io.Writer

	mu      sync.Mutex
	answers map[string]graph.SQLType
}

// newTypeChooser returns an interactive chooser when stdin is a terminal and
// the first-candidate policy otherwise.
func newTypeChooser() graph.TypeChooser {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return graph.FirstCandidate{}
	}
	return newPromptChooser(os.Stdin, os.Stderr)
}

func newPromptChooser(in io.Reader, out io.Writer) *promptChooser {
	return &promptChooser{
		in:      bufio.NewReader(in),
		out:     out,
		answers: make(map[string]graph.SQLType),
	}
}

func (p *promptChooser) ChooseType(col *graph.Column, candidates []graph.SQLType) (graph.SQLType, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := strings.ToUpper(col.NativeType())
	if t, ok := p.answers[key]; ok {
		return t, nil
	}

	fmt.Fprintf(p.out, "Column %q has native type %s. Bind it to:\n", col.Name(), col.NativeType())
	for i, c := range candidates {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, c.Name)
	}
	for {
		fmt.Fprintf(p.out, "Choice [1-%d, default 1]: ", len(candidates))
		line, err := p.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil && err != io.EOF {
				return graph.SQLType{}, err
			}
			p.answers[key] = candidates[0]
			return candidates[0], nil
		}
		n, convErr := strconv.Atoi(line)
		if convErr == nil && n >= 1 && n <= len(candidates) {
			p.answers[key] = candidates[n-1]
			return candidates[n-1], nil
		}
		if err != nil {
			return graph.SQLType{}, fmt.Errorf("invalid choice %q", line)
		}
		fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(candidates))
	}
}
