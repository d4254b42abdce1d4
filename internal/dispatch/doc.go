// Package dispatch routes classified input events to the engine's handlers.
//
// Each event reaches at most one engine handler. The candidate order is fixed:
//
//	motion: gamepad, touch navigation
//	key:    gamepad, touch navigation, keyboard
//
// The first candidate whose category matches the event is called and its
// result is returned verbatim. A declined or unmatched event falls through to
// the host toolkit.
//
// Volume keys are handled on a side channel before classification: every
// key-down for volume up or volume down adjusts the music stream, whatever
// happens to the event afterwards.
package dispatch
