// Package session owns the signed-in user's token pair.
//
// A Manager hands out an access token valid for the next call, refreshing it
// single-flight when it is within the refresh margin of expiry. A rejected
// refresh logs the user out and runs the OnLogout hooks. Tokens persist
// through a TokenStore; KeyringStore keeps them in the OS keychain.
package session
