// Package console is an interactive shell for a running framework.
//
// Commands follow the classic OSGi shell: lb lists bundles, install,
// start, stop, update, uninstall, resolve and refresh drive the lifecycle,
// and headers, wires, exports, services and loadclass inspect the module
// graph. Run reads lines with readline (history, tab completion of
// commands and bundle ids); Execute runs a single line and is what tests
// use.
package console
