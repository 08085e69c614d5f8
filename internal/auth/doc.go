// Package auth authenticates the touch panels and admin clients that drive
// the API.
//
// A panel is a device identity: an ID, an Argon2id-hashed secret, a role and
// optionally the room it is mounted in. Exchanging the ID and secret yields a
// short-lived HS256 access token carrying the role and room. Admin tokens may
// control any room; panel tokens only their own.
package auth
