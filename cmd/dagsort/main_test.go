package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// X waits for A and fills a spare core once G1 is done.
const scenarioPipeline = `X
1

A
A
3
G1

B
1
G2
A
END
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePipeline(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.txt")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestSimulate(t *testing.T) {
	path := writePipeline(t, scenarioPipeline)

	out, err := execute(t, "simulate", "--pipeline", path, "--cpu_cores", "2", "--state-dir", t.TempDir())
	require.NoError(t, err)

	exp := "" +
		"| Time    | Tasks being Executed | Group Name\n" +
		"| ------- | -------------------- | ----------\n" +
		"| 1       | A                    | G1        \n" +
		"| 2       | A                    | G1        \n" +
		"| 3       | A                    | G1        \n" +
		"| 4       | B, X                 | G2        \n" +
		"\n" +
		"Minimum Execution Time = 4 minutes.\n"
	assert.Equal(t, exp, out)
}

func TestSimulateErrors(t *testing.T) {
	tests := map[string]struct {
		data   string
		args   []string
		expErr string
	}{
		"Missing cores should fail.": {
			data:   scenarioPipeline,
			expErr: "--cpu-cores must be an integer of 1 or above",
		},
		"Zero cores should fail.": {
			data:   scenarioPipeline,
			args:   []string{"--cpu-cores", "0"},
			expErr: "--cpu-cores must be an integer of 1 or above",
		},
		"A cycle should fail.": {
			data:   "A\n1\nG1\nB\nB\n1\nG1\nA\n",
			args:   []string{"--cpu-cores", "1"},
			expErr: "cyclic dependency",
		},
		"An unknown dependency should fail.": {
			data:   "A\n1\nG1\nghost\n",
			args:   []string{"--cpu-cores", "1"},
			expErr: "unknown dependency",
		},
		"An unknown dependency that is allowed stalls.": {
			data:   "A\n1\nG1\nghost\n",
			args:   []string{"--cpu-cores", "1", "--allow-unknown-deps"},
			expErr: "stalled schedule",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			path := writePipeline(t, test.data)
			args := append([]string{"simulate", "--pipeline", path, "--state-dir", t.TempDir()}, test.args...)

			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.expErr)
		})
	}
}

func TestSaveShowHistory(t *testing.T) {
	path := writePipeline(t, scenarioPipeline)
	stateDir := t.TempDir()

	_, err := execute(t, "simulate", "--pipeline", path, "--cpu-cores", "2", "--save", "--state-dir", stateDir)
	require.NoError(t, err)

	out, err := execute(t, "history", "--state-dir", stateDir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	id := strings.Fields(lines[1])[0]

	out, err = execute(t, "show", id, "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Makespan:    4 minutes")
	assert.Contains(t, out, "Minimum Execution Time = 4 minutes.")

	out, err = execute(t, "show", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = execute(t, "show", "missing", "--state-dir", stateDir)
	assert.Error(t, err)

	_, err = execute(t, "history", "--clean", "--state-dir", stateDir)
	require.NoError(t, err)
	out, err = execute(t, "history", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Equal(t, "No saved runs.\n", out)
}

func TestOrder(t *testing.T) {
	path := writePipeline(t, "B\n1\nG1\nA\nA\n2\nG1\n\n")

	out, err := execute(t, "order", "--pipeline", path)
	require.NoError(t, err)
	assert.Equal(t, "── G1\n  A              2\n  B              1  after A\n", out)

	out, err = execute(t, "order", "--pipeline", path, "--format", "dot")
	require.NoError(t, err)
	assert.Contains(t, out, `"A" -> "B"`)
}

func TestSweep(t *testing.T) {
	path := writePipeline(t, "A\n2\nG1\n\nB\n2\nG1\n\n")

	out, err := execute(t, "sweep", "--pipeline", path, "--from", "1", "--to", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1      4 "), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2      2 "), lines[2])
}
