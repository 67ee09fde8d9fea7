// Package config loads the watcher's YAML configuration. Values support
// ${VAR} environment expansion, durations are written as Go duration
// strings, and the exclude-word list accepts a YAML sequence, a JSON
// array, or a comma-separated string. The loaded Config is immutable:
// built once in cmd and passed by reference into every component.
package config
