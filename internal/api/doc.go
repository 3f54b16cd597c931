// Package api holds the error types shared by the framework, the service
// registry and the command line surface.
//
// Errors are plain structs implementing error. Callers test for them with
// the Is* helpers, which use errors.As and therefore see through wrapping:
//
//	if api.IsNotFound(err) {
//	    fmt.Println("no such bundle")
//	}
package api
