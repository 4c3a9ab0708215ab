// Package middleware guards HTTP handlers with a streamauth Manager.
//
// # Guards
//
//   - [User], [Admin] and [Owner] require an authenticated user at or above a role.
//   - [RequirePermission] requires a resource/action grant.
//
// Guards authenticate through the Manager and store the user on the request
// context, where [streamauth.AuthUserFromContext] finds it. A guard placed
// behind another reuses the user already on the context.
//
// Rejections are JSON bodies with a stable code: 401 when the request is not
// authenticated and 403 when the user lacks the role or grant. Error details
// are never written to the client.
package middleware
