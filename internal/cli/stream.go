// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/stream"
	"github.com/jeranaias/rigrun-chat/internal/transport"
)

// streamOptions controls how a response is shown.
type streamOptions struct {
	stopMarker string
	// md, when set, buffers the response and prints it rendered at the end.
	md *markdownRenderer
}

// followExchange prints ex as it streams. An interrupt (Ctrl+C) stops the
// response; the text received so far is kept.
func followExchange(w io.Writer, ctrl *chat.Controller, ex *chat.Exchange, opts streamOptions) chat.Result {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	live := opts.md == nil || opts.md.r == nil
	printed := 0
	last := byte('\n')
	write := func(s string) {
		if s == "" {
			return
		}
		fmt.Fprint(w, s)
		last = s[len(s)-1]
	}
	endLine := func() {
		if last != '\n' {
			fmt.Fprintln(w)
			last = '\n'
		}
	}
	show := func(content string) {
		if live && len(content) > printed {
			write(content[printed:])
			printed = len(content)
		}
	}

	updates := ex.Updates()
	for updates != nil {
		select {
		case ev, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if ev.Kind == stream.EventDelta {
				show(ev.Content)
			}
		case <-sig:
			ctrl.Stop()
		}
	}

	res := ex.Wait()
	if live {
		show(res.Text)
	} else {
		write(opts.md.Render(res.Text))
	}

	switch {
	case res.Stopped():
		fmt.Fprintln(w, DimStyle.Render(opts.stopMarker))
	case res.Err != nil && !transport.IsAuth(res.Err):
		endLine()
		fmt.Fprintln(w, ErrorStyle.Render("Error:")+" "+transport.Detail(res.Err))
	default:
		endLine()
	}
	return res
}
