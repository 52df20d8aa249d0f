// Package manifest builds, encodes and decodes bundle manifests.
//
// A manifest maps each actor type to the CID of its code block. The encoded
// form is DAG-CBOR:
//
//	[1, [[code-cid, actor-type], ...]]
//
// Entries are sorted by actor type ascending, so the bytes (and therefore the
// manifest CID) depend only on the set of entries, never on the order in
// which modules were discovered.
package manifest
