/*
Package ports defines the driven ports (interfaces) for the Birocrat engine.

These interfaces decouple the session engine from external implementations,
allowing it to work with different script runtimes, storage backends, and
locking strategies.

# Key Interfaces

  - DriverRuntime: Invokes the form's decision function (e.g. the Lua adapter).
  - SessionStore: Persists and loads session Snapshots.
  - DistributedLocker: Coordinates session access across replicas.
*/
package ports
