// Package accounts implements the identity backend for a channel based
// video product: credential verification, dual token (access/refresh)
// session management over cookies, and the subscription graph reads that
// power channel profiles and watch history.
//
// Token lifecycle:
//   - Each user carries a single refresh token slot. IssuePair writes it,
//     Rotate swaps it with a compare-and-swap so a superseded token can
//     never rotate again, and Revoke clears it. Access tokens are verified
//     statelessly; refresh tokens are always checked against the slot.
//
// Graph reads:
//   - ChannelGraph derives subscriber counts, subscription counts, and the
//     viewer's is-subscribed flag from raw subscription edges at read time.
//     Watch history is a two-level join (video, then owner projection) that
//     preserves the stored viewing order.
//
// Activity sinks:
//   - ActivitySink receives login, rotation, and token-reuse events.
//     Reuse of a superseded refresh token is reported distinctly since it
//     is a signal of possible token theft. Sinks run best-effort.
package accounts
