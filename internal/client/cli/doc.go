// Package cli provides the interactive NoteLock command-line client.
//
// It wires configuration, the local key store, the HTTP backend client and
// the decrypted content cache into an interactive REPL. Typical flow: sign
// in (unwrapping the content key), start the background content watch, and
// execute user commands against the cache.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
