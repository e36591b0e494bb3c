package trainer

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Reporter scores a prediction file produced by the evaluation pass. The
// production implementation shells out to the conlleval script; tests
// substitute fakes.
type Reporter interface {
	Report(predictionPath string) (string, error)
}

// ConllEval invokes the conlleval perl script with the prediction file on
// stdin and surfaces the first two lines of its output, the overall
// accuracy and F1 summary.
type ConllEval struct {
	Script string
}

// Report implements Reporter.
func (c ConllEval) Report(predictionPath string) (string, error) {
	f, err := os.Open(predictionPath)
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	defer f.Close()

	cmd := exec.Command("perl", c.Script)
	cmd.Stdin = bufio.NewReader(f)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("report: conlleval: %w", err)
	}

	lines := strings.Split(out.String(), "\n")
	if len(lines) > 2 {
		lines = lines[:2]
	}
	return strings.Join(lines, "\n"), nil
}
