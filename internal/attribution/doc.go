// Package attribution recovers who wrote which part of an article from the
// inline authorship tags embedded in its text, and composes new tagged text
// for the editor.
//
// A tag line looks like
//
//	[alice - 16.10.2026 10:00:00]
//
// and marks the start of alice's block. Everything in this package is a pure
// function of its inputs; nothing is cached or persisted.
package attribution
