// Package clientconfig reads and writes the active sets of clients and sync
// groups.
//
// A client's active set lives in its sync group's shared file, in its own
// managed file under the data directory, or, before the first read, in the
// client's own config file, which is adopted into a managed file exactly once.
// Writes never touch a client's own file except through WriteOriginal, which
// keeps every key other than mcpServers. All writes take a backup first and
// hold the per-path lock.
package clientconfig
