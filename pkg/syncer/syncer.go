// Package syncer implements anti-entropy synchronization and
// causal-send ordering between a friend's message history and the
// local store, on top of pkg/wire frames and pkg/session sessions.
package syncer

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pion/logging"

	"github.com/zerolink/zerolink/pkg/session"
	"github.com/zerolink/zerolink/pkg/store"
	"github.com/zerolink/zerolink/pkg/vclock"
	"github.com/zerolink/zerolink/pkg/wire"
)

// Syncer drives anti-entropy sync for one node: it reacts to newly
// ready peer sessions and inbound frames, and exposes the two
// UI-facing operations that touch the store and wire together,
// SendChat and SyncNow. It has no UI dependency: chat_id is derived
// purely from the remote peer's public key.
type Syncer struct {
	store     *store.Store
	registry  *session.Registry
	selfPKHex string
	log       logging.LeveledLogger
}

// New returns a Syncer bound to st and reg. selfPKHex is the local
// node's own public key hex, used as the vector clock's node id.
func New(st *store.Store, reg *session.Registry, selfPKHex string, log logging.LeveledLogger) *Syncer {
	return &Syncer{store: st, registry: reg, selfPKHex: selfPKHex, log: log}
}

// OnPeerReady is registered as a session.Registry's ReadyFunc: it
// triggers anti-entropy sync the moment a friend's session becomes
// Ready, per the "on any newly-Ready peer session" trigger.
func (sy *Syncer) OnPeerReady(s *session.Session) {
	if err := sy.SyncNow(s.RemotePKHex()); err != nil && sy.log != nil {
		sy.log.Warnf("syncer: sync on ready failed for %s: %v", s.RemotePKHex(), err)
	}
}

// SyncNow sends a sync_request to friendPKHex's live session carrying
// the local vector clock for that chat, if the friend is currently
// connected. It is a no-op (not an error) if the friend is offline.
func (sy *Syncer) SyncNow(friendPKHex string) error {
	sess, ok := sy.registry.Get(friendPKHex)
	if !ok {
		return nil
	}

	chatID := friendPKHex
	clock, err := sy.store.GetVectorClock(chatID)
	if err != nil {
		return fmt.Errorf("syncer: load clock for sync request: %w", err)
	}
	clockJSON, err := clock.Marshal()
	if err != nil {
		return fmt.Errorf("syncer: marshal clock: %w", err)
	}

	frame, err := wire.EncodeSyncRequest(wire.SyncRequestPayload{VectorClock: clockJSON})
	if err != nil {
		return fmt.Errorf("syncer: encode sync request: %w", err)
	}
	return sendOn(sess, frame)
}

// SendChat persists a new outgoing message with a freshly incremented
// vector clock and, if friendPKHex is currently connected, emits it
// immediately. If the friend is offline the message is simply queued
// in local storage and propagates on the next successful sync.
func (sy *Syncer) SendChat(friendPKHex, content string) error {
	chatID := friendPKHex

	clock, err := sy.store.GetVectorClock(chatID)
	if err != nil {
		return fmt.Errorf("syncer: load clock: %w", err)
	}
	clock = vclock.Increment(clock, sy.selfPKHex)

	if err := sy.store.SaveVectorClock(chatID, clock); err != nil {
		return fmt.Errorf("syncer: save clock: %w", err)
	}

	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("syncer: generate uid: %w", err)
	}
	uid := fmt.Sprintf("%s-%d-%s", sy.selfPKHex, time.Now().Unix(), hex.EncodeToString(nonce[:]))
	if err := sy.store.SaveMessage(uid, chatID, sy.selfPKHex, content, clock); err != nil {
		return fmt.Errorf("syncer: save message: %w", err)
	}

	clockJSON, err := clock.Marshal()
	if err != nil {
		return fmt.Errorf("syncer: marshal clock: %w", err)
	}
	frame, err := wire.EncodeChat(wire.ChatPayload{UID: uid, Content: content, VectorClock: clockJSON})
	if err != nil {
		return fmt.Errorf("syncer: encode chat: %w", err)
	}

	sess, ok := sy.registry.Get(friendPKHex)
	if !ok {
		// Offline: queued locally, will propagate on next sync.
		return nil
	}
	return sendOn(sess, frame)
}

// HandleFrame implements session.FrameHandler: it is invoked by a
// session's receive loop for every decoded frame from remotePKHex.
func (sy *Syncer) HandleFrame(remotePKHex string, frame *wire.Frame) {
	var err error
	switch {
	case frame.Chat != nil:
		err = sy.handleChat(remotePKHex, frame.Chat)
	case frame.SyncRequest != nil:
		err = sy.handleSyncRequest(remotePKHex, frame.SyncRequest)
	case frame.SyncResponse != nil:
		err = sy.handleSyncResponse(remotePKHex, frame.SyncResponse)
	}
	if err != nil && sy.log != nil {
		sy.log.Warnf("syncer: handling frame from %s: %v", remotePKHex, err)
	}
}

func (sy *Syncer) handleChat(remotePKHex string, payload *wire.ChatPayload) error {
	chatID := remotePKHex

	incoming, err := vclock.Parse(payload.VectorClock)
	if err != nil {
		return fmt.Errorf("parse chat vector clock: %w", err)
	}

	if err := sy.store.SaveMessage(payload.UID, chatID, remotePKHex, payload.Content, incoming); err != nil {
		return fmt.Errorf("save chat message: %w", err)
	}

	local, err := sy.store.GetVectorClock(chatID)
	if err != nil {
		return fmt.Errorf("load local clock: %w", err)
	}
	merged := vclock.Merge(local, incoming)
	return sy.store.SaveVectorClock(chatID, merged)
}

func (sy *Syncer) handleSyncRequest(remotePKHex string, payload *wire.SyncRequestPayload) error {
	remoteClock, err := vclock.Parse(payload.VectorClock)
	if err != nil {
		return fmt.Errorf("parse sync request clock: %w", err)
	}

	// From this node's perspective, the chat with remotePKHex is keyed
	// by remotePKHex, same as on the requester's side.
	rows, err := sy.store.IterateMessagesFor(remotePKHex)
	if err != nil {
		return fmt.Errorf("iterate messages: %w", err)
	}

	var toSend []wire.SyncMessage
	for _, row := range rows {
		if vclock.MissingAt(row.VectorClock, row.SenderPK, remoteClock) {
			rowClockJSON, err := row.VectorClock.Marshal()
			if err != nil {
				return fmt.Errorf("marshal row clock: %w", err)
			}
			toSend = append(toSend, wire.SyncMessage{
				UID:         row.UID,
				SenderPK:    row.SenderPK,
				Content:     row.Content,
				Timestamp:   row.Timestamp,
				VectorClock: rowClockJSON,
			})
		}
	}

	if len(toSend) == 0 {
		// Empty responses are suppressed.
		return nil
	}

	sess, ok := sy.registry.Get(remotePKHex)
	if !ok {
		return nil
	}
	frame, err := wire.EncodeSyncResponse(wire.SyncResponsePayload{Messages: toSend})
	if err != nil {
		return fmt.Errorf("encode sync response: %w", err)
	}
	return sendOn(sess, frame)
}

func (sy *Syncer) handleSyncResponse(remotePKHex string, payload *wire.SyncResponsePayload) error {
	chatID := remotePKHex

	local, err := sy.store.GetVectorClock(chatID)
	if err != nil {
		return fmt.Errorf("load local clock: %w", err)
	}

	for _, msg := range payload.Messages {
		msgClock, err := vclock.Parse(msg.VectorClock)
		if err != nil {
			return fmt.Errorf("parse synced message %s clock: %w", msg.UID, err)
		}
		if err := sy.store.SaveMessage(msg.UID, chatID, msg.SenderPK, msg.Content, msgClock); err != nil {
			return fmt.Errorf("save synced message %s: %w", msg.UID, err)
		}
		local = vclock.Merge(local, msgClock)
	}

	return sy.store.SaveVectorClock(chatID, local)
}

func sendOn(s *session.Session, frame []byte) error {
	return s.Send(frame)
}
