package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// run executes quotactl with args and returns what it wrote to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	var in io.Reader = strings.NewReader(stdin)
	cmd.SetIn(in)

	err := cmd.Execute()
	return out.String(), err
}
