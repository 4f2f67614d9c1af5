// Package marble parses marble diagrams into timed notification sequences.
//
// # Grammar
//
//	-        idle frame (one tick)
//	|        Complete notification
//	#        Error notification
//	^        subscription point
//	!        unsubscription point (subscription diagrams only)
//	( ... )  group: enclosed tokens share exactly one frame
//	<char>   value emission, looked up in Values, else the literal character
//	<space>  ignored (layout only)
//
// Every non-whitespace character outside a group advances time by one frame
// multiplied by the frame-time factor. A group advances time by one frame as
// a whole.
//
// # Subscription point
//
// A '^' in an observable diagram marks frame 0. Tokens before it get negative
// frames, which hot sources treat as history no subscriber can observe. When
// '^' shares a group with values, the marker is resolved first, so both
// "(^a)" and "(a^)" emit a at frame 0.
//
// # Truncation
//
// Notifications beyond the configured maximum frame are dropped silently.
package marble
