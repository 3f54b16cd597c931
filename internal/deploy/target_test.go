package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosgi/internal/config"
	"gosgi/internal/framework"
)

const (
	apiDescriptor = `
symbolicName: org.acme.api
version: 1.0.0
exports:
  - name: org.acme.api
`
	apiDescriptorV2 = `
symbolicName: org.acme.api
version: 2.0.0
exports:
  - name: org.acme.api
    version: 2.0.0
`
	clientDescriptor = `
symbolicName: org.acme.client
imports:
  - name: org.acme.api
`
)

func startFramework(t *testing.T) *framework.Framework {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	fw, err := framework.New(framework.Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	t.Cleanup(func() {
		_ = fw.Stop()
		fw.WaitForStop(5 * time.Second)
	})
	return fw
}

func TestFrameworkTargetLifecycle(t *testing.T) {
	fw := startFramework(t)
	target := NewFrameworkTarget(fw, true)

	// The client arrives before its dependency and waits for Settle.
	require.NoError(t, target.Deploy("file:/deploy/client.yaml", []byte(clientDescriptor)))
	cl, ok := fw.BundleByLocation("file:/deploy/client.yaml")
	require.True(t, ok)
	assert.Equal(t, framework.StateInstalled, cl.State())
	assert.True(t, cl.AutoStart())

	require.NoError(t, target.Deploy("file:/deploy/api.yaml", []byte(apiDescriptor)))
	target.Settle()
	assert.Equal(t, framework.StateActive, cl.State())

	api, _ := fw.BundleByLocation("file:/deploy/api.yaml")
	rev := api.Revision()
	require.NoError(t, target.Deploy("file:/deploy/api.yaml", []byte(apiDescriptor)))
	assert.Equal(t, rev, api.Revision(), "unchanged content is not redeployed")

	require.NoError(t, target.Deploy("file:/deploy/api.yaml", []byte(apiDescriptorV2)))
	assert.Equal(t, "2.0.0", api.Version().String())
	assert.Empty(t, fw.Graph().Pending(), "update refreshes dependents")
	assert.Equal(t, framework.StateActive, cl.State())

	assert.ElementsMatch(t, []string{"file:/deploy/client.yaml", "file:/deploy/api.yaml"}, target.Locations("file:/deploy/"))

	require.NoError(t, target.Undeploy("file:/deploy/api.yaml"))
	assert.Empty(t, fw.Graph().Pending())
	assert.Equal(t, framework.StateInstalled, cl.State())
	assert.Equal(t, []string{"file:/deploy/client.yaml"}, target.Locations("file:/deploy/"))

	require.NoError(t, target.Undeploy("file:/deploy/missing.yaml"))
}

func TestWatcherWithFramework(t *testing.T) {
	fw := startFramework(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.yaml"), []byte(clientDescriptor), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api.yaml"), []byte(apiDescriptor), 0644))

	w, err := NewWatcher(dir, 20*time.Millisecond, NewFrameworkTarget(fw, true))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	cl, ok := fw.BundleByLocation(Location(filepath.Join(dir, "client.yaml")))
	require.True(t, ok)
	assert.Equal(t, framework.StateActive, cl.State(), "scan settles after installing everything")

	require.NoError(t, os.Remove(filepath.Join(dir, "client.yaml")))
	assert.Eventually(t, func() bool {
		_, ok := fw.BundleByLocation(cl.Location())
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}
