// Package integration runs the dashboard endpoints against a ClickHouse
// container. The tests need a working Docker daemon.
package integration
