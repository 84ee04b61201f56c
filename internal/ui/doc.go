// Package ui implements the atlas terminal interface on Bubble Tea.
//
// The Model owns no data of its own beyond screen state. Country lists come
// from a listing.Reconciler, details from a detail.Resolver and favorites
// from a session.Store; network calls run as tea.Cmds and report back as
// messages, so Update never blocks.
package ui
