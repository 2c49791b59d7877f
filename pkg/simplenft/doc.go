// Package simplenft provides a reusable library for enriching NFTs with
// off-chain metadata, media properties and thumbnails.
//
// The root package holds the data model shared by all sub-packages (Nft,
// Media, ProcessSettings), the collaborator interfaces (Repository,
// BlobStore) and the error taxonomy. Behaviour lives in sub-packages:
//
//	cache      coalescing fetcher and batch resolver over a TTL store
//	media      media resolution and content-type probing
//	metadata   metadata resolution from NFT attributes
//	thumbnail  thumbnail rendering and idempotent generation
//	worker     the per-NFT processing pipeline
//	queue      the retry-bounded message consumer
//	esdt       address and token lookups backed by the gateway
//
// Caching
//
// Every upstream lookup goes through cache.GetOrSet, which guarantees that
// for a given key at most one producer runs at a time. Callers that arrive
// while a producer is running wait for its result instead of starting
// another one.
package simplenft
