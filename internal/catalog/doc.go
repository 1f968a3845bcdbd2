// Package catalog is the read-only registry of content shown by rotabot.
//
// Rotations only store identifiers; display names, official names, nickname
// patterns and resistances are looked up here. A Catalog is built once at
// startup and shared by pointer; it is never mutated afterwards.
package catalog
