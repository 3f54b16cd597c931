// Package config loads the framework configuration.
//
// Configuration is read from a single directory that contains config.yaml.
// The default directory is ~/.config/gosgi; commands accept --config-path to
// point elsewhere. A missing config.yaml is not an error: the defaults from
// GetDefaultConfig are used instead. Keys present in the file override the
// defaults, keys absent keep them.
//
// A full example:
//
//	storage:
//	  dir: bundles-cache
//	  clean: false
//	deploy:
//	  enabled: true
//	  dir: deploy
//	  debounce: 500ms
//	  autoStart: true
//	startLevel:
//	  enabled: true
//	  beginning: 3
//	  initialBundle: 1
//	resolver:
//	  selfWiring: true
//	  commitRetries: 5
//	metrics:
//	  enabled: true
//	  address: localhost:9464
//	log:
//	  level: info
//	  format: text
//	systemPackages:
//	  - name: org.osgi.framework
//	    version: 1.5.0
//	shutdownTimeout: 30s
//	properties:
//	  org.acme.greeting: hello
//
// Relative storage and deploy directories are resolved against the
// configuration directory. Validation failures are returned as a
// *ConfigurationErrorCollection so that every problem is reported at once.
package config
