// Package gateway is the client side of the HabitHive HTTP API.
//
// # Overview
//
// The engine depends only on the Gateway interface. HTTPClient is the single
// production implementation; MockGateway is an in-memory implementation for
// tests and offline demos.
//
// # Endpoints
//
// All paths are relative to a base URL ending in /api:
//
//   - POST /auth/send-otp - Request a one-time code
//   - POST /auth/verify-otp - Exchange phone + code for tokens
//   - POST /auth/apple-signin - Exchange an Apple identity token for tokens
//   - POST /auth/refresh?refresh_token=... - Refresh the token pair
//   - GET /habits/?include_logs=true&days=N - Habits with recent logs
//   - POST /habits/ - Create a habit
//   - DELETE /habits/{id} - Delete a habit
//   - POST /habits/{id}/log - Log today's value
//   - DELETE /habits/{id}/log?log_date=yyyy-MM-dd - Remove a day's log
//   - GET /hives/ - List hives
//   - GET /hives/{id} - Hive detail with members and member days
//   - POST /hives/{id}/log - Log today's value for the caller
//   - POST /hives/{id}/invite - Create an invite code
//   - POST /hives/join - Redeem an invite code
//
// # Authentication
//
// Authenticated calls go through an Authorizer (normally *session.Manager):
//
//	client := gateway.NewHTTPClient(baseURL, nil, logger)
//	mgr := session.NewManager(client)
//	client.SetAuthorizer(mgr)
//
// The Authorizer supplies a bearer token and performs the single
// refresh-then-retry when a call answers 401.
//
// # Errors
//
// Status routing is the only interpretation applied to responses:
//
//   - 401 - apperr.ErrUnauthorized
//   - other 4xx/5xx - *apperr.ServerError with the body's detail message
//   - transport failure or timeout - *apperr.NetworkError
//   - malformed body - *apperr.DecodingError, logged at error level
package gateway
