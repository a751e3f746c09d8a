// Package syncgroup manages groups of clients that share one active-config
// file.
//
// A client belongs to at most one group. Any membership change that leaves a
// group with one member or fewer dissolves it: the remaining references are
// cleared, the record is removed and the shared file is deleted after its
// servers are handed to the former members' managed files.
package syncgroup
