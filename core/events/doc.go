// Package events defines the typed session event contract.
//
// Event kinds are grouped by source namespace:
//
//   - transcript.*: events arriving from the transcription channel
//   - branch.*: narrative branch generation outcomes
//   - control.*: user-driven UI actions
//
// All session state mutation happens inside the session run loop, which
// consumes exactly these events; producers on other goroutines only
// construct and post them.
package events
