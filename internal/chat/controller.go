// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/directory"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/session"
	"github.com/jeranaias/rigrun-chat/internal/storage"
	"github.com/jeranaias/rigrun-chat/internal/stream"
	"github.com/jeranaias/rigrun-chat/internal/transport"
)

// ErrNoWorkspace is returned by list operations before a workspace is set.
var ErrNoWorkspace = errors.New("no workspace selected")

// archiveTimeout bounds recording one exchange.
const archiveTimeout = 5 * time.Second

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Directory is the chat and message API. *directory.Directory satisfies it.
type Directory interface {
	ListChats(ctx context.Context, workspaceID string) ([]model.Chat, error)
	CreateChat(ctx context.Context, workspaceID, title string) (model.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	ClearChatMessages(ctx context.Context, chatID string) error
	LoadMessages(ctx context.Context, chatID string) ([]model.Message, error)
}

// Streamer starts streaming runs. *stream.Engine satisfies it.
type Streamer interface {
	Start(ctx context.Context, req stream.Request) *stream.Run
}

// Recorder archives finalized exchanges. *storage.Archive satisfies it.
type Recorder interface {
	RecordExchange(ctx context.Context, ex storage.Exchange) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = config.OrDiscard(logger) }
}

// WithRecorder archives every finalized exchange.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithStopMarker sets the suffix appended to a stopped response.
func WithStopMarker(marker string) Option {
	return func(c *Controller) { c.stopMarker = marker }
}

// WithNewChatTitle sets the title given to chats created without one.
func WithNewChatTitle(title string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(title) != "" {
			c.newChatTitle = title
		}
	}
}

// WithWorkspace sets the initial workspace.
func WithWorkspace(id string) Option {
	return func(c *Controller) { c.workspace = id }
}

// WithAgentMode sets the initial agent mode.
func WithAgentMode(on bool) Option {
	return func(c *Controller) { c.agentMode = on }
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives a chat session. Its methods are safe for concurrent use.
type Controller struct {
	dir       Directory
	engine    Streamer
	recorder  Recorder
	logger    *slog.Logger
	loop      *Loop
	canceller *session.Canceller

	stopMarker   string
	newChatTitle string
	workspace    string
	agentMode    bool

	// Loop-owned state.
	store     *session.Store
	catalog   *directory.Catalog
	awaiting  map[string]string // chat id -> title while a server rename is pending
	refreshed map[string]bool   // chats whose title refresh already ran
	activeRun uint64
	nextRun   uint64
	closed    bool

	pumps     sync.WaitGroup
	closeOnce sync.Once
}

// New creates a controller and starts its loop.
func New(dir Directory, engine Streamer, opts ...Option) *Controller {
	c := &Controller{
		dir:          dir,
		engine:       engine,
		logger:       config.DiscardLogger(),
		canceller:    session.NewCanceller(),
		stopMarker:   config.DefaultStopMarker,
		newChatTitle: config.DefaultNewChatTitle,
		awaiting:     make(map[string]string),
		refreshed:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = session.NewStore(c.stopMarker)
	c.store.SetAgentMode(c.agentMode)
	c.catalog = directory.NewCatalog(c.workspace)
	c.loop = NewLoop()
	return c
}

// State is a point-in-time view of the session.
type State struct {
	session.Snapshot
	WorkspaceID string
	Chats       []model.Chat
	Awaiting    map[string]bool
}

// SelectedTitle returns the display title of the selected chat, or "".
func (s State) SelectedTitle() string {
	for _, chat := range s.Chats {
		if chat.ID == s.SelectedChat {
			return chat.DisplayTitle()
		}
	}
	return ""
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	var st State
	_ = c.loop.Call(func() {
		st = State{
			Snapshot:    c.store.Snapshot(),
			WorkspaceID: c.catalog.WorkspaceID(),
			Chats:       c.catalog.Chats(),
			Awaiting:    make(map[string]bool, len(c.awaiting)),
		}
		for id := range c.awaiting {
			st.Awaiting[id] = true
		}
	})
	return st
}

// call runs fn on the loop, failing once the controller is closed.
func (c *Controller) call(fn func() error) error {
	var err error
	if lerr := c.loop.Call(func() {
		if c.closed {
			err = ErrClosed
			return
		}
		err = fn()
	}); lerr != nil {
		return lerr
	}
	return err
}

// =============================================================================
// CHAT LIST
// =============================================================================

// LoadChats fetches the workspace's chats. When no chat is selected the first
// one is selected and its history loaded. A workspace with no chats leaves the
// selection empty.
func (c *Controller) LoadChats(ctx context.Context) error {
	var ws string
	if err := c.call(func() error {
		ws = c.catalog.WorkspaceID()
		return nil
	}); err != nil {
		return err
	}
	if ws == "" {
		return ErrNoWorkspace
	}

	chats, err := c.dir.ListChats(ctx, ws)
	if err != nil {
		return err
	}

	var load string
	var epoch uint64
	if err := c.call(func() error {
		if !c.applyChats(ws, chats) {
			return nil
		}
		if c.store.SelectedChat() == "" {
			if first, ok := c.catalog.First(); ok {
				c.selectLocked(first.ID)
				load, epoch = first.ID, c.store.Epoch()
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if load != "" {
		_, err := c.loadMessages(ctx, load, epoch)
		return err
	}
	return nil
}

// applyChats replaces the catalog if ws is still current. Must run on the loop.
func (c *Controller) applyChats(ws string, chats []model.Chat) bool {
	if c.catalog.WorkspaceID() != ws {
		c.logger.Debug("discarding stale chat list", "workspace_id", ws)
		return false
	}
	c.catalog.Replace(chats)
	for _, chat := range chats {
		if pending, ok := c.awaiting[chat.ID]; ok {
			if strings.TrimSpace(chat.Title) != strings.TrimSpace(pending) {
				delete(c.awaiting, chat.ID)
				c.logger.Debug("chat retitled", "chat_id", chat.ID, "title", chat.Title)
			}
			continue
		}
		if chat.HasPlaceholderTitle(c.newChatTitle) && !c.refreshed[chat.ID] {
			c.awaiting[chat.ID] = chat.Title
		}
	}
	return true
}

// CreateChat creates a chat, puts it first in the list and selects it. An
// empty title uses the configured new-chat title.
func (c *Controller) CreateChat(ctx context.Context, title string) (model.Chat, error) {
	if strings.TrimSpace(title) == "" {
		title = c.newChatTitle
	}
	var ws string
	if err := c.call(func() error {
		ws = c.catalog.WorkspaceID()
		return nil
	}); err != nil {
		return model.Chat{}, err
	}
	if ws == "" {
		return model.Chat{}, ErrNoWorkspace
	}

	chat, err := c.dir.CreateChat(ctx, ws, title)
	if err != nil {
		return model.Chat{}, err
	}

	err = c.call(func() error {
		if c.catalog.WorkspaceID() != ws {
			return nil
		}
		c.catalog.Prepend(chat)
		if chat.HasPlaceholderTitle(c.newChatTitle) {
			c.awaiting[chat.ID] = chat.Title
		}
		c.selectLocked(chat.ID)
		c.store.ReplaceMessages(nil)
		return nil
	})
	return chat, err
}

// DeleteChat deletes a chat. Deleting the selected chat clears the selection.
func (c *Controller) DeleteChat(ctx context.Context, chatID string) error {
	if err := c.dir.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	return c.call(func() error {
		c.catalog.Remove(chatID)
		delete(c.awaiting, chatID)
		delete(c.refreshed, chatID)
		if c.store.SelectedChat() == chatID {
			c.selectLocked("")
		}
		return nil
	})
}

// ClearChat deletes every message of chatID (the selected chat when empty).
// It is refused while that chat is streaming.
func (c *Controller) ClearChat(ctx context.Context, chatID string) error {
	if err := c.call(func() error {
		if chatID == "" {
			chatID = c.store.SelectedChat()
		}
		if chatID == "" {
			return session.ErrNoChat
		}
		if c.store.Streaming() && c.store.SelectedChat() == chatID {
			return session.ErrStreaming
		}
		return nil
	}); err != nil {
		return err
	}

	if err := c.dir.ClearChatMessages(ctx, chatID); err != nil {
		return err
	}
	return c.call(func() error {
		if c.store.SelectedChat() == chatID && !c.store.Streaming() {
			c.store.ClearMessages()
		}
		return nil
	})
}

// =============================================================================
// SELECTION
// =============================================================================

// selectLocked changes the selection, stopping any active stream and
// detaching its run. Must run on the loop.
func (c *Controller) selectLocked(id string) bool {
	if id == c.store.SelectedChat() {
		return false
	}
	if c.store.Streaming() {
		c.canceller.Stop()
		c.activeRun = 0
	}
	return c.store.SelectChat(id)
}

// SelectChat selects a chat and loads its history. Selecting the current chat
// reloads it.
func (c *Controller) SelectChat(ctx context.Context, chatID string) error {
	var epoch uint64
	if err := c.call(func() error {
		c.selectLocked(chatID)
		epoch = c.store.Epoch()
		return nil
	}); err != nil {
		return err
	}
	if chatID == "" {
		return nil
	}
	_, err := c.loadMessages(ctx, chatID, epoch)
	return err
}

// LoadMessages reloads the selected chat's history.
func (c *Controller) LoadMessages(ctx context.Context) error {
	var id string
	var epoch uint64
	if err := c.call(func() error {
		id, epoch = c.store.SelectedChat(), c.store.Epoch()
		return nil
	}); err != nil {
		return err
	}
	if id == "" {
		return session.ErrNoChat
	}
	_, err := c.loadMessages(ctx, id, epoch)
	return err
}

// loadMessages fetches chatID's history and applies it if the selection is
// still at epoch and nothing is streaming. It reports whether it applied.
func (c *Controller) loadMessages(ctx context.Context, chatID string, epoch uint64) (bool, error) {
	msgs, err := c.dir.LoadMessages(ctx, chatID)
	if err != nil {
		return false, err
	}
	applied := false
	err = c.call(func() error {
		if c.store.Epoch() != epoch || c.store.Streaming() {
			c.logger.Debug("discarding stale history", "chat_id", chatID)
			return nil
		}
		c.store.ReplaceMessages(msgs)
		applied = true
		return nil
	})
	return applied, err
}

// SwitchWorkspace changes the workspace, clears the selection and loads the
// new workspace's chats.
func (c *Controller) SwitchWorkspace(ctx context.Context, workspaceID string) error {
	if err := c.call(func() error {
		if workspaceID == c.catalog.WorkspaceID() {
			return nil
		}
		c.selectLocked("")
		c.catalog.Reset(workspaceID)
		return nil
	}); err != nil {
		return err
	}
	return c.LoadChats(ctx)
}

// SetAgentMode toggles the agent endpoint for subsequent sends.
func (c *Controller) SetAgentMode(on bool) error {
	return c.call(func() error {
		c.store.SetAgentMode(on)
		return nil
	})
}

// =============================================================================
// SENDING
// =============================================================================

// Send appends the user message and an empty assistant placeholder, then
// streams the response into the placeholder. Both messages are in the session
// before Send returns. It fails without side effects while a response is
// streaming, with no chat selected, or for blank text.
//
// ctx bounds the whole exchange; use Stop to interrupt it as a user stop.
func (c *Controller) Send(ctx context.Context, text string) (*Exchange, error) {
	var ex *Exchange
	var run *stream.Run
	var tok *session.Token
	var runID uint64
	var ws string

	err := c.call(func() error {
		if err := c.store.AppendOptimisticExchange(text); err != nil {
			return err
		}
		chatID := c.store.SelectedChat()
		agent := c.store.AgentMode()
		ws = c.catalog.WorkspaceID()

		c.nextRun++
		runID = c.nextRun
		c.activeRun = runID
		tok = c.canceller.Issue(ctx)
		ex = newExchange(chatID, text, agent)
		run = c.engine.Start(tok.Context(), stream.Request{ChatID: chatID, Message: text, AgentMode: agent})
		c.pumps.Add(1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("exchange started", "chat_id", ex.ChatID, "agent", ex.AgentMode)
	go c.pump(ctx, ex, run, runID, tok, ws)
	return ex, nil
}

// Stop interrupts the active response as a user stop. The content received so
// far is kept with the stop marker appended. It reports whether a response was
// active; once the store has finalized a response, Stop is a no-op. Safe to
// call from any goroutine except the loop.
func (c *Controller) Stop() bool {
	stopped := false
	if err := c.loop.Call(func() {
		if c.activeRun != 0 {
			stopped = c.canceller.Stop()
		}
	}); err != nil {
		return false
	}
	return stopped
}

// pump applies a run's events on the loop, then finalizes the exchange.
func (c *Controller) pump(ctx context.Context, ex *Exchange, run *stream.Run, runID uint64, tok *session.Token, ws string) {
	defer c.pumps.Done()

	var last stream.Event
	for ev := range run.Events() {
		last = ev
		_ = c.loop.Call(func() { c.apply(runID, ev) })
		ex.publish(ev)
	}
	c.canceller.Release(tok)
	close(ex.updates)

	result := Result{
		Phase:     last.Phase(),
		Text:      last.Content,
		Err:       last.Err,
		RequestID: last.RequestID,
		Duration:  time.Since(ex.StartedAt),
	}
	if !last.Terminal() {
		result.Phase = stream.PhaseErrored
	}

	c.archive(ctx, ex, ws, result)
	c.refreshTitle(ctx, ex.ChatID, ws)
	ex.finish(result)
}

// apply moves the store forward by one event of run runID. Events of a run
// that is no longer active are dropped. Must run on the loop.
func (c *Controller) apply(runID uint64, ev stream.Event) {
	if runID != c.activeRun {
		return
	}

	switch ev.Kind {
	case stream.EventOpened:
		c.must("begin streaming", c.store.BeginStreaming())
	case stream.EventDelta:
		c.must("update content", c.store.UpdateLastAssistantContent(ev.Content))
	case stream.EventCompleted, stream.EventCancelled:
		c.activeRun = 0
		c.must("update content", c.store.UpdateLastAssistantContent(ev.Content))
		c.must("finalize", c.store.FinalizeStream(ev.Kind == stream.EventCancelled))
	case stream.EventFailed:
		c.activeRun = 0
		if transport.IsAuth(ev.Err) {
			// Reported through the session's expiry hook; the placeholder stays.
			c.must("abort", c.store.AbortStream())
			return
		}
		if ev.Content != "" {
			c.must("update content", c.store.UpdateLastAssistantContent(ev.Content))
		}
		c.must("fail", c.store.FailStream(transport.Detail(ev.Err)))
	}
}

func (c *Controller) must(op string, err error) {
	if err != nil {
		c.logger.Warn("session update rejected", "op", op, "error", err)
	}
}

// archive records the exchange. Failures are logged only.
func (c *Controller) archive(ctx context.Context, ex *Exchange, ws string, r Result) {
	if c.recorder == nil {
		return
	}
	rec := storage.Exchange{
		ChatID:        ex.ChatID,
		WorkspaceID:   ws,
		UserText:      ex.UserText,
		AssistantText: r.Text,
		Outcome:       r.Phase.String(),
		AgentMode:     ex.AgentMode,
		RequestID:     r.RequestID,
		StartedAt:     ex.StartedAt,
		FinishedAt:    time.Now(),
	}
	if r.Err != nil {
		rec.Error = transport.Detail(r.Err)
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := c.recorder.RecordExchange(actx, rec); err != nil {
		c.logger.Warn("failed to archive exchange", "chat_id", ex.ChatID, "error", err)
	}
}

// refreshTitle reloads the chat list once when chatID still awaits a server
// title. The chat stops awaiting after the first successful reload even if the
// server kept the placeholder.
func (c *Controller) refreshTitle(ctx context.Context, chatID, ws string) {
	var pending bool
	if err := c.call(func() error {
		_, pending = c.awaiting[chatID]
		pending = pending && c.catalog.WorkspaceID() == ws
		return nil
	}); err != nil || !pending {
		return
	}

	chats, err := c.dir.ListChats(ctx, ws)
	if err != nil {
		c.logger.Debug("title refresh failed", "chat_id", chatID, "error", err)
		return
	}
	_ = c.call(func() error {
		if c.applyChats(ws, chats) {
			delete(c.awaiting, chatID)
			c.refreshed[chatID] = true
		}
		return nil
	})
}

// Close stops any active response, waits for it to finalize and shuts the
// loop down. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		_ = c.loop.Call(func() { c.closed = true })
		c.canceller.Stop()
		c.pumps.Wait()
		c.loop.Close()
	})
}
