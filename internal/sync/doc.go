// Package sync keeps the local datastore and the remote backend eventually
// consistent. One orchestration task per process debounces local-write and
// remote-change events into sync cycles; a cycle pushes the full local
// snapshot, hands newly pushed records to the share broker, pulls remote
// changes since the cursor into one local transaction, and advances the
// cursor only after everything succeeded.
//
// Push before pull is deliberate: the device's own writes reach the backend
// first, then the pull overwrites local rows with whatever the backend holds,
// so after any interleaving both sides converge on the last full cycle's
// state.
package sync
