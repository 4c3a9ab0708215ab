// Package permission resolves a user's effective grants and answers
// "may this user perform action on resource".
//
// # Resolution
//
// Effective permissions are the role defaults unioned with the user's
// overrides. Unconditional grants on the same resource collapse into one
// entry with merged actions; conditional grants stay separate so their
// conditions are not widened.
//
// # Matching
//
//   - "*" matches every resource; "ns:*" matches "ns" and anything below it.
//   - manage covers every action; admin covers read, write and delete.
//   - Roles below admin are never granted anything in the admin namespace,
//     whatever their overrides say.
//
// The package performs no I/O.
package permission
