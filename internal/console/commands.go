package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gosgi/internal/formatting"
	"gosgi/internal/module"
	"gosgi/internal/services"
)

const refreshTimeout = time.Minute

func (c *Console) registerCommands() {
	ids := c.bundleIDs
	for _, cmd := range []*Command{
		{Name: "help", Usage: "help", Description: "List available commands", Run: c.help},
		{Name: "lb", Aliases: []string{"bundles", "ss"}, Usage: "lb", Description: "List installed bundles", Run: c.listBundles},
		{Name: "install", Aliases: []string{"i"}, Usage: "install <file> [--start]", Description: "Install a bundle from a descriptor file", Run: c.install},
		{Name: "start", Usage: "start <id>...", Description: "Start bundles", Run: c.each(c.fw.StartBundle), Complete: ids},
		{Name: "stop", Usage: "stop <id>...", Description: "Stop bundles", Run: c.each(c.fw.StopBundle), Complete: ids},
		{Name: "uninstall", Aliases: []string{"un"}, Usage: "uninstall <id>...", Description: "Uninstall bundles", Run: c.each(c.fw.UninstallBundle), Complete: ids},
		{Name: "update", Aliases: []string{"up"}, Usage: "update <id> [file]", Description: "Update a bundle from its location or a file", Run: c.update, Complete: ids},
		{Name: "resolve", Usage: "resolve [id...]", Description: "Resolve bundles, all installed ones by default", Run: c.resolve, Complete: ids},
		{Name: "refresh", Usage: "refresh [id...]", Description: "Refresh packages, only removal pending ones by default", Run: c.refresh, Complete: ids},
		{Name: "headers", Usage: "headers <id>", Description: "Show a bundle's descriptor", Run: c.headers, Complete: ids},
		{Name: "wires", Usage: "wires [id...]", Description: "Show wires", Run: c.wires, Complete: ids},
		{Name: "exports", Aliases: []string{"packages"}, Usage: "exports [id...]", Description: "Show exported packages", Run: c.exports, Complete: ids},
		{Name: "services", Aliases: []string{"ls"}, Usage: "services [id]", Description: "Show registered services", Run: c.listServices, Complete: ids},
		{Name: "loadclass", Usage: "loadclass <id> <class>", Description: "Find which bundle provides a class", Run: c.loadClass, Complete: ids},
		{Name: "startlevel", Aliases: []string{"sl"}, Usage: "startlevel [level]", Description: "Show or change the framework start level", Run: c.startLevel},
		{Name: "bundlelevel", Usage: "bundlelevel <id> <level>", Description: "Change a bundle's start level", Run: c.bundleLevel, Complete: ids},
		{Name: "format", Usage: "format <table|plain|json|yaml>", Description: "Change the output format", Run: c.format},
		{Name: "shutdown", Usage: "shutdown", Description: "Stop the framework", Run: c.shutdown},
		{Name: "exit", Aliases: []string{"quit"}, Usage: "exit", Description: "Leave the console", Run: func([]string) error { return errExit }},
	} {
		c.registry.Register(cmd)
	}
}

func (c *Console) help([]string) error {
	t := formatting.Table{Headers: []string{"COMMAND", "DESCRIPTION"}}
	for _, cmd := range c.registry.List() {
		usage := cmd.Usage
		if len(cmd.Aliases) > 0 {
			usage += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		t.Rows = append(t.Rows, []string{usage, cmd.Description})
	}
	return formatting.NewFormatter(formatting.Options{Format: formatting.FormatPlain}).Write(c.out, t)
}

func (c *Console) listBundles([]string) error {
	if err := c.write(formatting.BundlesTable(c.fw.Bundles())); err != nil {
		return err
	}
	if c.options.Format == formatting.FormatTable || c.options.Format == formatting.FormatPlain || c.options.Format == "" {
		fmt.Fprintf(c.out, "Framework start level: %d\n", c.fw.StartLevel())
	}
	return nil
}

func (c *Console) install(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: install <file> [--start]")
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := c.fw.Install("file:"+path, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Bundle ID: %d\n", b.ID())
	if len(args) > 1 && (args[1] == "--start" || args[1] == "-s") {
		return b.Start()
	}
	return nil
}

// each applies op to every bundle id argument and reports the first error.
func (c *Console) each(op func(module.BundleID) error) func([]string) error {
	return func(args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("at least one bundle id is required")
		}
		ids, err := parseBundleIDs(args)
		if err != nil {
			return err
		}
		var first error
		for _, id := range ids {
			if err := op(id); err != nil {
				fmt.Fprintf(c.out, "Bundle %d: %v\n", id, err)
				if first == nil {
					first = err
				}
			}
		}
		return first
	}
}

func (c *Console) update(args []string) error {
	b, err := c.bundleArg(args, "update <id> [file]")
	if err != nil {
		return err
	}
	path := strings.TrimPrefix(b.Location(), "file:")
	if len(args) > 1 {
		path = args[1]
	} else if !strings.HasPrefix(b.Location(), "file:") {
		return fmt.Errorf("bundle %d was not installed from a file, give the file to update from", b.ID())
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Update(f)
}

func (c *Console) resolve(args []string) error {
	ids, err := parseBundleIDs(args)
	if err != nil {
		return err
	}
	if !c.fw.ResolveBundles(ids...) {
		return fmt.Errorf("not all bundles could be resolved")
	}
	return nil
}

func (c *Console) refresh(args []string) error {
	ids, err := parseBundleIDs(args)
	if err != nil {
		return err
	}
	select {
	case out := <-c.fw.RefreshPackages(ids...):
		if out.Discarded {
			return fmt.Errorf("refresh discarded, framework is stopping")
		}
		fmt.Fprintf(c.out, "Refreshed %d bundle(s)\n", out.Refreshed)
		return nil
	case <-time.After(refreshTimeout):
		return fmt.Errorf("refresh did not complete within %s", refreshTimeout)
	}
}

func (c *Console) headers(args []string) error {
	b, err := c.bundleArg(args, "headers <id>")
	if err != nil {
		return err
	}
	return c.write(formatting.HeadersTable(b))
}

func (c *Console) wires(args []string) error {
	ids, err := parseBundleIDs(args)
	if err != nil {
		return err
	}
	return c.write(formatting.WiresTable(c.fw.Graph(), ids...))
}

func (c *Console) exports(args []string) error {
	ids, err := parseBundleIDs(args)
	if err != nil {
		return err
	}
	return c.write(formatting.PackagesTable(c.fw.ExportedPackages(ids...)))
}

func (c *Console) listServices(args []string) error {
	if len(args) == 0 {
		var all []services.Reference
		for _, b := range c.fw.Bundles() {
			all = append(all, c.fw.Services().RegisteredBy(b.ID())...)
		}
		return c.write(formatting.ServicesTable(all))
	}
	b, err := c.bundleArg(args, "services [id]")
	if err != nil {
		return err
	}
	return c.write(formatting.ServicesTable(c.fw.Services().RegisteredBy(b.ID())))
}

func (c *Console) loadClass(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: loadclass <id> <class>")
	}
	ids, err := parseBundleIDs(args[:1])
	if err != nil {
		return err
	}
	loaded, err := c.fw.LoadClass(ids[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s loaded from bundle %d (module %d)\n", loaded.Name, loaded.Bundle, loaded.Module)
	return nil
}

func (c *Console) startLevel(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "Level is %d\n", c.fw.StartLevel())
		return nil
	}
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid start level %q", args[0])
	}
	return c.fw.SetStartLevel(level)
}

func (c *Console) bundleLevel(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: bundlelevel <id> <level>")
	}
	ids, err := parseBundleIDs(args[:1])
	if err != nil {
		return err
	}
	level, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid start level %q", args[1])
	}
	return c.fw.SetBundleStartLevel(ids[0], level)
}

func (c *Console) format(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: format <table|plain|json|yaml>")
	}
	f, err := formatting.ParseFormat(args[0])
	if err != nil {
		return err
	}
	c.options.Format = f
	return nil
}

func (c *Console) shutdown([]string) error {
	return c.fw.Stop()
}
