// Package cli provides the interactive scripture command-line client.
//
// It opens the local offline store, wires the content cache, annotation
// store, conversation history and rate limiter on top of it, and runs a
// REPL until the user exits. AI translation, chat replies and cloud sync
// are optional and enabled by configuration.
//
// The REPL is started via App.Run(ctx). See runREPL for the command set.
package cli
