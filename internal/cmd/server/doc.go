// Package serverrun boots the runtime and HTTP server for the CLI's
// "server start" command and handles signal-driven shutdown.
package serverrun
