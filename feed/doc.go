// Package feed buffers the live agent event feed.
//
// A Stream reads JSON frames from the feed websocket and appends the
// well-formed ones to a bounded Ring, which keeps only the most recent
// events. Feed failures end the stream and are never allowed to affect
// session state.
package feed
