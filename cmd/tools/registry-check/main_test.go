package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryPath = "../../../configs/activity-registry.json"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateRegistry(t *testing.T) {
	assert.NoError(t, validateRegistry(registryPath))

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "empty", body: `{"activities":[]}`, msg: "no activities"},
		{name: "unserved task type", body: `{"activities":[{"id":"x","taskType":"fleet-order-archive"}]}`, msg: "no worker serves"},
		{name: "bad timeout", body: `{"activities":[{"id":"x","taskType":"fleet-order-get","timeout":"soon"}]}`, msg: "invalid timeout"},
		{name: "missing served type", body: `{"activities":[{"id":"x","taskType":"fleet-order-get"}]}`, msg: "served but not registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRegistry(writeFile(t, "registry.json", tt.body))
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestListActivities(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listActivities(&out, registryPath))
	assert.Contains(t, out.String(), "fleet-order-create")
	assert.Contains(t, out.String(), "fleet-order-decide")
}

func TestCheckInput(t *testing.T) {
	var out bytes.Buffer
	valid := writeFile(t, "vars.json", `{"actorId":3,"family":"mission","orderId":1,"status":"approved"}`)
	require.NoError(t, checkInput(&out, registryPath, "fleet-order-decide", valid))
	assert.Contains(t, out.String(), "valid for fleet-order-decide")

	out.Reset()
	invalid := writeFile(t, "vars.json", `{"actorId":3,"family":"mission","orderId":1,"status":"pending"}`)
	assert.ErrorContains(t, checkInput(&out, registryPath, "fleet-order-decide", invalid), "schema violations")
	assert.NotEmpty(t, out.String())

	assert.ErrorContains(t, checkInput(&out, registryPath, "fleet-order-archive", valid), "not registered")
}
