// Package api provides the REST client used to resolve channel logins to
// user ids before listening to channel topics.
//
// Endpoint:
//   - Production: https://api.twitch.tv/helix
//
// Requests carry the account's bearer token and Client-Id header.
package api
