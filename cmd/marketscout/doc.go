// Command marketscout is the operator CLI.
//
// Queue, opportunity, and run history commands read the SQLite store
// directly, so they work whether or not the daemon is up. `run trigger`
// forwards to the daemon API when it is reachable and otherwise runs the
// pipeline in-process. `daemon run` hosts the daemon in the foreground.
package main
