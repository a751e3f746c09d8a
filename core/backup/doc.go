// Package backup keeps timestamped copies of files before they are overwritten.
//
// Every managed write calls Manager.Backup first. The copy is placed in a
// `mcp-backups` directory beside the original, named
// `backup-<basename>-<timestamp>.json`, and older copies of the same file are
// pruned newest-first down to the retention configured in settings.json.
//
// A file that does not exist yet is not an error: there is nothing to keep.
// Callers log backup failures and carry on with the write.
package backup
