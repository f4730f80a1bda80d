// Package tui implements the interactive server-picker screen.
//
// The picker is a bubbletea program fed by merge-engine snapshots: every
// time the merged server list, scanning flag, or progress changes, a new
// snapshot arrives and the screen re-renders. Servers appear and vanish
// live while the user browses the list.
//
// The picker owns nothing of discovery itself; it starts and stops the
// engine it was handed and otherwise only reads snapshots, so it can be
// exercised against an engine backed entirely by fakes.
package tui
