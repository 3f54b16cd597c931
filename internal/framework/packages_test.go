package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosgi/internal/config"
	"gosgi/internal/module"
	"gosgi/internal/resolver"
	"gosgi/internal/version"
)

const requirer = `
symbolicName: org.acme.requirer
requireBundles:
  - name: org.acme.api
    version: "2.0"
packages:
  org.acme.requirer: [Main]
`

func TestExportedPackages(t *testing.T) {
	fw := newStartedFramework(t)
	v1 := install(t, fw, "file:api-1.yaml", apiV1)
	v2 := install(t, fw, "file:api-2.yaml", apiV2)
	cl := install(t, fw, "file:client.yaml", client)

	assert.Nil(t, fw.ExportedPackages(v1.ID()), "unresolved bundles export nothing")
	require.True(t, fw.ResolveBundles())

	all := fw.ExportedPackages()
	names := make(map[string]int)
	for _, p := range all {
		names[p.Name]++
	}
	assert.Equal(t, 2, names["org.acme.api"])
	assert.Equal(t, 1, names["org.osgi.framework"])

	pkgs := fw.ExportedPackagesByName("org.acme.api")
	require.Len(t, pkgs, 2)

	best, ok := fw.ExportedPackage("org.acme.api")
	require.True(t, ok)
	assert.Equal(t, v2.ID(), best.Exporter)
	assert.Equal(t, []module.BundleID{cl.ID()}, best.Importers, "highest version wins")
	assert.Equal(t, "org.acme.api;version=2.0.0", best.String())

	own := fw.ExportedPackages(v1.ID())
	require.Len(t, own, 1)
	assert.Empty(t, own[0].Importers)

	_, ok = fw.ExportedPackage("org.acme.nothing")
	assert.False(t, ok)
}

func TestRequiredBundles(t *testing.T) {
	fw := newStartedFramework(t)
	install(t, fw, "file:api-1.yaml", apiV1)
	v2 := install(t, fw, "file:api-2.yaml", apiV2)
	req := install(t, fw, "file:requirer.yaml", requirer)
	require.NoError(t, fw.ResolveBundle(req.ID()))

	required := fw.RequiredBundles("org.acme.api")
	require.Len(t, required, 1, "only resolved bundles are listed")
	assert.Equal(t, v2.ID(), required[0].Bundle)
	assert.Equal(t, []module.BundleID{req.ID()}, required[0].Requiring)

	assert.Nil(t, fw.RequiredBundles("org.acme.unknown"))
	assert.Len(t, fw.RequiredBundles(""), 2)
}

func TestBundlesByName(t *testing.T) {
	fw := newStartedFramework(t)
	v1 := install(t, fw, "file:api-1.yaml", apiV1)
	v2 := install(t, fw, "file:api-2.yaml", apiV2)

	all := fw.BundlesByName("org.acme.api", version.Any)
	require.Len(t, all, 2)
	assert.Equal(t, v2.ID(), all[0].ID())
	assert.Equal(t, v1.ID(), all[1].ID())

	rng, err := version.ParseRange("[1.0,2.0)")
	require.NoError(t, err)
	only := fw.BundlesByName("org.acme.api", rng)
	require.Len(t, only, 1)
	assert.Equal(t, v1.ID(), only[0].ID())

	assert.Nil(t, fw.BundlesByName("org.acme.none", version.Any))
}

func TestLoadClass(t *testing.T) {
	fw := newStartedFramework(t)
	v1 := install(t, fw, "file:api-1.yaml", apiV1)
	v2 := install(t, fw, "file:api-2.yaml", apiV2)
	cl := install(t, fw, "file:client.yaml", client)
	req := install(t, fw, "file:requirer.yaml", requirer)

	tests := []struct {
		name       string
		bundle     module.BundleID
		class      string
		wantBundle module.BundleID
		wantErr    bool
	}{
		{name: "imported package", bundle: cl.ID(), class: "org.acme.api.Greeter", wantBundle: v2.ID()},
		{name: "imported package misses class", bundle: cl.ID(), class: "org.acme.api.Nope", wantErr: true},
		{name: "own content", bundle: cl.ID(), class: "org.acme.client.Main", wantBundle: cl.ID()},
		{name: "required bundle", bundle: req.ID(), class: "org.acme.api.Farewell", wantBundle: v2.ID()},
		{name: "exporter own class", bundle: v1.ID(), class: "org.acme.api.Greeter", wantBundle: v1.ID()},
		{name: "unknown package", bundle: cl.ID(), class: "org.acme.other.Thing", wantErr: true},
		{name: "no package", bundle: cl.ID(), class: "Thing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, err := fw.LoadClass(tt.bundle, tt.class)
			if tt.wantErr {
				assert.True(t, IsClassNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBundle, loaded.Bundle)
			assert.Equal(t, tt.class, loaded.Name)
		})
	}

	assert.Equal(t, StateResolved, cl.State(), "lookup resolves the bundle")
}

func TestLoadClassUnresolvable(t *testing.T) {
	fw := newStartedFramework(t)
	cl := install(t, fw, "file:client.yaml", client)

	_, err := fw.LoadClass(cl.ID(), "org.acme.client.Main")
	assert.True(t, IsClassNotFound(err))
	assert.Equal(t, StateInstalled, cl.State())
}

func TestModuleForPackage(t *testing.T) {
	fw := newStartedFramework(t)
	apiB := install(t, fw, "file:api.yaml", apiV1)
	cl := install(t, fw, "file:client.yaml", client)

	_, ok := fw.ModuleForPackage(cl.ID(), "org.acme.api")
	assert.False(t, ok, "no wires before resolution")

	require.NoError(t, fw.ResolveBundle(cl.ID()))
	apiModule, _ := apiB.Module()
	got, ok := fw.ModuleForPackage(cl.ID(), "org.acme.api")
	require.True(t, ok)
	assert.Equal(t, apiModule.ID, got)

	got, ok = fw.ModuleForPackage(apiB.ID(), "org.acme.api")
	require.True(t, ok)
	assert.Equal(t, apiModule.ID, got)

	_, ok = fw.ModuleForPackage(cl.ID(), "org.acme.unknown")
	assert.False(t, ok)
	_, ok = fw.ModuleForPackage(module.BundleID(42), "org.acme.api")
	assert.False(t, ok)
}

const selfImport = `
symbolicName: org.acme.selfimport
exports:
  - name: org.acme.a
imports:
  - name: org.acme.a
packages:
  org.acme.a: [A]
`

func TestSelfImportPackage(t *testing.T) {
	fw := newStartedFramework(t)
	b := install(t, fw, "file:selfimport.yaml", selfImport)

	require.NoError(t, b.Start())
	assert.Equal(t, StateActive, b.State())

	m, ok := b.Module()
	require.True(t, ok)
	exporter, ok := fw.ModuleForPackage(b.ID(), "org.acme.a")
	require.True(t, ok)
	assert.Equal(t, m.ID, exporter)

	loaded, err := fw.LoadClass(b.ID(), "org.acme.a.A")
	require.NoError(t, err)
	assert.Equal(t, b.ID(), loaded.Bundle)
}

func TestSelfImportPackageWithoutSelfWiring(t *testing.T) {
	fw := newStartedFramework(t, func(c *config.FrameworkConfig) {
		c.Resolver.SelfWiring = false
	})
	b := install(t, fw, "file:selfimport.yaml", selfImport)

	err := b.Start()
	assert.True(t, resolver.IsResolutionError(err))
	assert.Equal(t, StateInstalled, b.State())

	other := install(t, fw, "file:other.yaml", "symbolicName: org.acme.other\nexports:\n  - name: org.acme.a\n")
	require.NoError(t, b.Start())
	exporter, ok := fw.ModuleForPackage(b.ID(), "org.acme.a")
	require.True(t, ok)
	otherModule, _ := other.Module()
	assert.Equal(t, otherModule.ID, exporter)
}
