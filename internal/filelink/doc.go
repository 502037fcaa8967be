// Package filelink drives the attachment upload-and-share sequence for the
// mail host: ensure the target directory, fetch an upload ticket, upload,
// create a share link, and delete the remote file again when the attachment
// is removed. It also serves the synchronous settings operations
// (test-connection, save-config, load-config) and maps errors to the wire
// codes the host shows users.
//
// Upload tracking is in memory only. A restart forgets which remote files
// belong to which attachments; at worst a file is left orphaned on the
// server.
package filelink
