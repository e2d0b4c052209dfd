// Package logging configures structured JSON logging for scry.
// Logs go to a size-rotated file under ~/.scry/logs/ and, unless the
// process is serving MCP over stdio, are mirrored to stderr.
package logging
