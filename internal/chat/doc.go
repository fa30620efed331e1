// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates one interactive chat session.
//
// A Controller owns the session store, the chat catalog and the cancellation
// controller. Every mutation of that state runs on a single Loop goroutine;
// network requests run on their own goroutines and post results back to the
// loop, where stale ones are discarded:
//
//   - a chat list applies only if the workspace is unchanged
//   - a history applies only if the selection is unchanged and no response
//     is streaming
//   - stream events apply only while their run is still the active one
//
// # Usage
//
//	ctrl := chat.New(dir, engine, chat.WithWorkspace(ws), chat.WithLogger(logger))
//	defer ctrl.Close()
//
//	if err := ctrl.LoadChats(ctx); err != nil {
//	    return err
//	}
//	ex, err := ctrl.Send(ctx, "hello")
//	if err != nil {
//	    return err
//	}
//	for ev := range ex.Updates() {
//	    fmt.Print(ev.Delta)
//	}
//	result := ex.Wait()
package chat
