// Package ws streams live terminal output to WebSocket viewers and accepts
// input, signals, and resize requests from them.
//
// Wire protocol: the server sends one JSON text frame on attach carrying the
// current screen contents, then raw output bytes as binary frames. Viewers
// send JSON text frames ("input", "signal", "resize", "ping").
package ws
