package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	workflow "github.com/shiningyao/imixs-workflow"
)

const modelsDir = "../../model/testdata/models"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// lastEnvelope decodes the error envelope, which follows any log lines.
func lastEnvelope(t *testing.T, stderr string) workflow.RPCErrorEnvelope {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	var envelope workflow.RPCErrorEnvelope
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &envelope), stderr)
	return envelope
}

func TestRunCommandJSON(t *testing.T) {
	rec := writeFile(t, "ticket.yaml", "$modelversion: ticket\n$processid: 1100\n$activityid: 20\nsubject: printer jam\n")

	code, stdout, stderr := run("run", "--models", modelsDir, "--record", rec, "--caller", "manfred", "--format", "json")
	require.Equal(t, 0, code, stderr)

	out := workflow.NewRecord()
	require.NoError(t, json.Unmarshal([]byte(stdout), out))
	assert.Equal(t, 1200, out.ProcessID())
	assert.Equal(t, "printer jam", out.ItemValueString("subject"))
	assert.Equal(t, "manfred", out.ItemValueString("$editor"))
}

func TestRunCommandActivityOverride(t *testing.T) {
	rec := writeFile(t, "ticket.json", `{"$modelversion": ["ticket"], "$processid": [1100], "txtcomment": ["dup"]}`)

	code, stdout, stderr := run("run", "--models", modelsDir, "--record", rec, "--activity", "30", "--no-audit")
	require.Equal(t, 0, code, stderr)
	out := workflow.NewRecord()
	require.NoError(t, yaml.Unmarshal([]byte(stdout), out))
	assert.Equal(t, 1900, out.ProcessID())
	assert.False(t, out.HasItem("$editor"))
}

func TestRunCommandVeto(t *testing.T) {
	rec := writeFile(t, "ticket.yaml", "$modelversion: ticket\n$processid: 1100\n$activityid: 30\n")

	code, stdout, stderr := run("run", "--models", modelsDir, "--record", rec)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	envelope := lastEnvelope(t, stderr)
	assert.Equal(t, workflow.ErrCodePluginExecution, envelope.Code)
	assert.Contains(t, envelope.Message, "vetoed")
}

func TestRunCommandUnknownVersion(t *testing.T) {
	rec := writeFile(t, "missing.yaml", "$modelversion: nope\n$processid: 1000\n$activityid: 10\n")

	code, _, stderr := run("run", "--models", modelsDir, "--record", rec)
	assert.Equal(t, 1, code)

	envelope := lastEnvelope(t, stderr)
	assert.Equal(t, workflow.ErrCodeModelLookup, envelope.Code)
	assert.Equal(t, workflow.ReasonVersionNotFound, envelope.Reason)
}

func TestModelsCommand(t *testing.T) {
	code, stdout, stderr := run("models", "--models", modelsDir)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "conditional\t")
	assert.Contains(t, stdout, "Budget review routing.")
	assert.Contains(t, stdout, "simple\t")
	assert.Contains(t, stdout, "ticket\t")
}

func TestValidateCommand(t *testing.T) {
	code, stdout, _ := run("validate", "--models", modelsDir)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "3 models valid")

	code, _, stderr := run("validate", "--models", "../../model/testdata/broken")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "dangling.yaml")
}

func TestUsage(t *testing.T) {
	code, stdout, _ := run("--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "validate")

	code, _, _ = run("run")
	assert.Equal(t, 2, code)
}
