// Package session turns stored credentials into a live Seafile API session.
// It is the single owner of the "account id → authenticated seafile.Client"
// glue, shared by the upload orchestrator and the CLI.
//
// Manager tries an ordered list of acquisition strategies: a cached session
// that still answers the liveness probe, then a stored API token, then a
// fresh login with the stored password. The first strategy that yields a
// live session wins; a newly issued token is written back to the vault so
// the next process starts at the stored-token step.
package session
