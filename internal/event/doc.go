// Package event parses the line-oriented output of a dining-philosophers
// simulator into structured events.
//
// Every line the simulator prints is expected to look like
//
//	<timestamp_ms> <actor_id> <message>
//
// where message is one of the fixed phrases ("has taken a fork", "is eating",
// "is sleeping", "is thinking", "died"). Lines with the right shape but an
// unknown message parse as KindCustom. Lines with the wrong shape do not parse
// at all; callers keep them as raw text for diagnostics.
//
// The package imports nothing internal. Parse is pure and safe for concurrent
// use.
package event
