package console

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosgi/internal/config"
	"gosgi/internal/formatting"
	"gosgi/internal/framework"
)

const (
	apiDescriptor = `
symbolicName: org.acme.api
version: 1.0.0
exports:
  - name: org.acme.api
packages:
  org.acme.api: [Greeter]
`
	clientDescriptor = `
symbolicName: org.acme.client
imports:
  - name: org.acme.api
`
)

func newConsole(t *testing.T) (*Console, *framework.Framework, *bytes.Buffer, string) {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	cfg.StartLevel.Enabled = true
	fw, err := framework.New(framework.Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	t.Cleanup(func() {
		_ = fw.Stop()
		fw.WaitForStop(5 * time.Second)
	})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api.yaml"), []byte(apiDescriptor), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.yaml"), []byte(clientDescriptor), 0644))

	var out bytes.Buffer
	return New(fw, &out, formatting.Options{Format: formatting.FormatPlain}), fw, &out, dir
}

func TestLifecycleCommands(t *testing.T) {
	c, fw, out, dir := newConsole(t)

	require.NoError(t, c.Execute("install "+filepath.Join(dir, "api.yaml")))
	assert.Contains(t, out.String(), "Bundle ID: 1")
	require.NoError(t, c.Execute("i "+filepath.Join(dir, "client.yaml")+" --start"))

	cl, err := fw.Bundle(2)
	require.NoError(t, err)
	assert.Equal(t, framework.StateActive, cl.State())

	out.Reset()
	require.NoError(t, c.Execute("lb"))
	assert.Contains(t, out.String(), "org.acme.client")
	assert.Contains(t, out.String(), "ACTIVE")
	assert.Contains(t, out.String(), "Framework start level: 1")

	require.NoError(t, c.Execute("stop 2"))
	assert.Equal(t, framework.StateResolved, cl.State())
	require.NoError(t, c.Execute("start 2"))
	assert.Equal(t, framework.StateActive, cl.State())

	out.Reset()
	require.NoError(t, c.Execute("wires 2"))
	assert.Contains(t, out.String(), "import-package")

	out.Reset()
	require.NoError(t, c.Execute("exports 1"))
	assert.Contains(t, out.String(), "org.acme.api")

	out.Reset()
	require.NoError(t, c.Execute("loadclass 2 org.acme.api.Greeter"))
	assert.Contains(t, out.String(), "loaded from bundle 1")

	out.Reset()
	require.NoError(t, c.Execute("headers 1"))
	assert.Contains(t, out.String(), "symbolicName")

	require.NoError(t, c.Execute("uninstall 1"))
	out.Reset()
	require.NoError(t, c.Execute("refresh"))
	assert.Contains(t, out.String(), "Refreshed")
	assert.Equal(t, framework.StateInstalled, cl.State())

	err = c.Execute("resolve")
	assert.ErrorContains(t, err, "not all bundles")
}

func TestUpdateFromLocation(t *testing.T) {
	c, fw, _, dir := newConsole(t)
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, c.Execute("install "+path))

	require.NoError(t, os.WriteFile(path, []byte(`
symbolicName: org.acme.api
version: 1.1.0
`), 0644))
	require.NoError(t, c.Execute("update 1"))
	b, err := fw.Bundle(1)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", b.Version().String())
	assert.Equal(t, 2, b.Revision())
}

func TestStartLevelCommands(t *testing.T) {
	c, fw, out, dir := newConsole(t)
	require.NoError(t, c.Execute("install "+filepath.Join(dir, "api.yaml")))
	require.NoError(t, c.Execute("bundlelevel 1 3"))
	require.NoError(t, c.Execute("start 1"))

	b, err := fw.Bundle(1)
	require.NoError(t, err)
	assert.NotEqual(t, framework.StateActive, b.State())

	require.NoError(t, c.Execute("sl 3"))
	assert.Equal(t, framework.StateActive, b.State())
	out.Reset()
	require.NoError(t, c.Execute("startlevel"))
	assert.Equal(t, "Level is 3\n", out.String())
}

func TestCommandErrors(t *testing.T) {
	c, _, _, _ := newConsole(t)

	tests := []struct {
		line    string
		wantErr string
	}{
		{line: "frobnicate", wantErr: "unknown command"},
		{line: "start", wantErr: "at least one bundle id"},
		{line: "start x", wantErr: "invalid bundle id"},
		{line: "start 42", wantErr: "not found"},
		{line: "headers", wantErr: "usage"},
		{line: "loadclass 1", wantErr: "usage"},
		{line: "format xml", wantErr: "unknown output format"},
		{line: "install /does/not/exist.yaml", wantErr: "no such file"},
		{line: "exit", wantErr: "exit"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.ErrorContains(t, c.Execute(tt.line), tt.wantErr)
		})
	}
	assert.NoError(t, c.Execute("   "))
}

func TestFormatAndHelp(t *testing.T) {
	c, _, out, _ := newConsole(t)

	require.NoError(t, c.Execute("help"))
	assert.Contains(t, out.String(), "lb (bundles, ss)")
	assert.Contains(t, out.String(), "refresh [id...]")

	require.NoError(t, c.Execute("format json"))
	out.Reset()
	require.NoError(t, c.Execute("lb"))
	assert.Contains(t, out.String(), `"symbolicName": "system.bundle"`)
	assert.NotContains(t, out.String(), "Framework start level")
}

func TestRegistryAliases(t *testing.T) {
	r := NewRegistry()
	r.Register(&Command{Name: "lb", Aliases: []string{"bundles"}})
	r.Register(&Command{Name: "help"})

	cmd, ok := r.Get("bundles")
	require.True(t, ok)
	assert.Equal(t, "lb", cmd.Name)
	_, ok = r.Get("nope")
	assert.False(t, ok)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "help", list[0].Name)
}
