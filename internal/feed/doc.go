// Package feed turns committed writes into fresh per-owner views.
//
// Writers call Publisher.OwnersChanged after a commit. That bumps a per-owner
// sequence number in Redis and publishes it. Every API instance subscribes;
// the Hub reloads the owner's snapshot, stamps it with the sequence number
// and hands it to reconcile.Service, which drops anything older than what it
// already holds. Fresh views are written to the Redis view cache and to any
// configured sinks such as the Firestore mirror.
package feed
