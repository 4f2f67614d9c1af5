package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns stdout,
// stderr and the command error.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeResponse decodes a JSON CLIResponse whose data is decoded into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()

	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

// compactJSON strips the indentation the CLI encoder adds.
func compactJSON(t *testing.T, data []byte) string {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, json.Compact(buf, data))
	return buf.String()
}
