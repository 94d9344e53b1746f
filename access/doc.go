// Package access schedules daily access windows for client addresses on a
// router.
//
// A window is materialized as four router objects: a rule that drops traffic
// from the address, a rule that accepts it, and two scheduler tasks that flip
// both rules at the start and end of the window. All four objects carry the
// same tag in their names, which is the only way to find them again, since the
// router has no notion of relations between objects. Before a new window is
// created for an address, every object tagged for that address is removed.
package access
