// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream ingests a chat response that arrives as an unframed, chunked
// text body.
//
// Engine.Start opens the stream through the transport client and returns a
// Run whose Events channel yields, in order:
//
//	EventOpened                      headers received (sending -> streaming)
//	EventDelta ...                   one per decoded chunk, carrying the FULL text so far
//	EventCompleted | EventCancelled | EventFailed
//
// The channel is closed after the terminal event. Consumers must drain it.
//
// Bytes are decoded with the charset from Content-Type (UTF-8 by default).
// A multi-byte sequence split across chunks is carried into the next chunk;
// one left dangling at end of stream becomes U+FFFD.
//
// Cancellation is cooperative: cancel the run's context with cause ErrStopped
// and the engine reports EventCancelled with whatever content arrived.
package stream
