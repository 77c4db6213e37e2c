// Package accounts provides a multi-tenant user account core: registration,
// password and token authentication, profile CRUD, avatar storage, and
// relationship-based per-object authorization.
//
// Repository pattern:
//   - Repository is the generic CRUD core. Every mutation runs in a single
//     storage transaction; unique violations are translated to Conflict
//     before they cross the boundary. Entity specializations attach Hooks
//     that run strictly after commit.
//   - Users specializes the repository for the User entity. Its hooks
//     schedule relationship grant/revoke and search index writes on a
//     Scheduler, keeping external engines off the request path: the primary
//     commit is the durability boundary and the engines converge eventually.
//
// Authorization:
//   - UserRelationships writes a fixed tuple set to the relationship engine
//     when a user is created and removes it on deletion. Guards evaluate
//     can_read/can_update/can_delete per target object against the engine;
//     there is no local decision cache.
//
// Authentication:
//   - Authenticator resolves bearer credentials through ordered strategies:
//     admin override tokens first, then session tokens. All failures
//     collapse into a single invalid-credentials result.
package accounts
