// Decision engine for group-chat moderation.
//
// For each non-command group message, the engine applies (in order) membership-notice suppression, admin-issued per-sender throttles, the non-member link policy, and the reply-timing spam check against posts forwarded from a linked channel. Spam handling deletes the message and bans or mutes the sender according to the group's policy. Short throttles are lifted again by a ReversalScheduler.
//
// Policy lives in `policystore`, and every platform call goes through a `botapi.API` (normally the rate-limited `gateway`). See `cmd/modbot` for the daemon built on this package.
package automod
