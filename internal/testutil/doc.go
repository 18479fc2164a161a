// Package testutil contains helpers shared by package tests: a scripted
// model that replays canned turns and records the requests it receives, and
// a JSON test server for upstream HTTP APIs. They are not intended for
// production usage.
package testutil
