// Package settings owns settings.json: the clients, the sync groups, the backup
// retention and the propagation switch.
//
// The document is loaded once at startup and then only replaced, never edited in
// place. Update clones the current snapshot, applies the caller's change, takes a
// backup, writes the file and only then publishes the new snapshot, so a failed
// write leaves memory and disk in agreement. Optionally the file is watched and
// reloaded when another program edits it.
package settings
