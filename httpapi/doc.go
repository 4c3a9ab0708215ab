// Package httpapi serves the authentication endpoints over chi:
//
//	POST /auth/login     {username, password} -> {user, accessToken, refreshToken}
//	POST /auth/logout    -> 204, clears the access token cookie
//	POST /auth/validate  -> {user}
//	POST /auth/refresh   {refreshToken} -> {accessToken}
//
// Every route sits behind a per-client-IP token bucket and a body size cap.
// The client IP and user agent are attached to the request context for the
// login guard and audit records.
package httpapi
