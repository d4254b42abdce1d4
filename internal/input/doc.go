// Package input classifies raw host input events into logical device categories.
//
// Classification is a pure function over an event's action and an optional
// capability bitmask. The bitmask is looked up lazily from the host's device
// registry at dispatch time rather than cached when a device attaches, so a
// device the registry no longer knows about simply yields an absent mask.
//
// RULES:
//   - Key events are Gamepad when the mask carries the joystick or gamepad source.
//   - Motion events are Gamepad only for those sources AND the Move action.
//   - Any event is TouchNavigation when the mask carries BOTH the touch-navigation
//     and keyboard sources. Touch-navigation hardware reports itself as
//     keyboard-compatible, so this test runs before the keyboard test.
//   - Remaining key events with the keyboard source are Keyboard.
//   - Everything else, including events with an absent mask, is Unclassified.
package input
