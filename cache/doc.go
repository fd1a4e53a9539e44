// Package cache provides the content-addressed image cache for rendered LaTeX.
//
// Entries are files named <key>.<ext> in a single flat directory, where key is
// the hex digest of the normalized query (see Keyer). A file's existence is
// the hit test. Writes go through a Reservation so a half-written image is
// never visible as a hit, and an aborted render leaves nothing behind.
//
// The cache has no eviction, no TTL and no size bound.
package cache
