// Package feature turns configured rotations into announcement and reply
// texts.
//
// Each entry of the features list has a kind. Build decodes the entry's
// config for that kind, validates it against the catalog and returns a
// value implementing Announcer, Responder, or both. Features are immutable
// once built; a config reload builds a fresh Set.
//
// Templates use __TOKEN__ placeholders. Every kind documents the tokens it
// fills; unknown tokens are left as written. __EMOJI__ is filled last from
// the shared emoji pool.
package feature
