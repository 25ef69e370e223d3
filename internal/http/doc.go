// Package http contains the REST handlers for session lifecycle, input
// delivery, signals, guidance answers, and output retrieval.
package http
