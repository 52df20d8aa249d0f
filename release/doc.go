// Package release signs and verifies bundle roots.
//
// An Attestation binds a variant name to a bundle root CID under an
// ed25519 or dilithium3 key. The signed message is domain separated:
//
//	"actorbundle-release-v1" || 0x00 || variant || 0x00 || root CID bytes
//
// and is hashed with the attestation's hash algorithm before signing.
//
// Key storage (KeyStore) is a local convenience for release machines and
// is not part of the attestation format.
package release
