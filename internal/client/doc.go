// Package client talks to a selected Doorstep server over the URLs it
// advertised during discovery.
//
// Two surfaces exist: FetchStatus performs a one-shot reachability and
// identity check against the server's HTTP API, and DialEvents opens a
// WebSocket to the realtime endpoint and streams server events until the
// connection ends. Both take the advertised base URLs verbatim; discovery
// never validates them, so unreachable or malformed URLs surface here.
package client
