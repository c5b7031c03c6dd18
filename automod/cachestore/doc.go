// Cache of platform chat metadata (titles, usernames, default member permissions) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The decision engine resolves sender chats and group default permissions through this cache, which keeps repeated lookups off the rate-limited gateway.
package cachestore
