// Package bridge connects a host UI runtime to a native game engine.
//
// ARCHITECTURE:
//
// Single-Writer Delivery Loop:
// Every input dispatch, lifecycle transition, hot-plug notification and cloud
// completion is handled on one goroutine, the one running Bridge.Run. Host
// calls are turned into tasks on a FIFO queue:
//   - Lifecycle, DispatchKey, DispatchMotion and the other synchronous calls
//     enqueue a task and wait for its reply
//   - CloudLoaded and the device listener enqueue and return immediately
//
// The cloud completion arrives on a host background thread. It is marshaled
// onto the loop before it touches the reconciler or the engine.
//
// Engine callbacks run on the loop. An engine callback must never call a
// synchronous Bridge method: the loop would wait on itself.
//
// Journal:
// When a journal is attached every handled call is appended to it, stamped
// with the bridge's logical clock. Journal failures are logged and never
// change what the host or the engine sees.
package bridge
