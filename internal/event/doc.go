// Package event implements the event channel: the single persistent websocket
// connection over which the server multiplexes project-list updates, session
// lifecycle events, and status ticks.
//
// # Main Types
//
//   - [Message]: Interface implemented by all decoded channel messages
//   - [Channel]: Websocket client with sequential, in-arrival-order dispatch
//   - [Handler]: Function type receiving each decoded message
//
// # Message Types
//
//   - [ProjectsUpdated]: A full project snapshot push
//   - [SessionCreated]: The server assigned a real ID to a new session
//   - [StatusUpdate]: A normalized agent status tick for a project
//   - [SessionEnded]: A conversation completed or was aborted
//
// Messages are dispatched one at a time from a single reader goroutine, so a
// handler observes them in exactly the order the server emitted them. Unknown
// message types are ignored; malformed payloads are dropped without stopping
// the channel. The raw status payload varies in shape between server versions
// (string vs object, "tokens" vs "token_count"); NormalizeStatus folds all
// shapes into one typed record at the channel boundary.
package event
