package sms

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	langdetect "github.com/cropsentinel/advisor/backend/internal/analysis/language"
	"github.com/cropsentinel/advisor/backend/internal/client/advisor"
	smsclient "github.com/cropsentinel/advisor/backend/internal/client/sms"
	"github.com/cropsentinel/advisor/backend/internal/model/sms"
	"github.com/cropsentinel/advisor/backend/internal/service/ai"
	"github.com/cropsentinel/advisor/backend/internal/store"
)

var ErrMessageNotFound = errors.New("sms message not found")

const snapshotBuffer = 4

// Proxy is the provider-facing side of the inbox.
type Proxy interface {
	List(ctx context.Context) ([]smsclient.InboundMessage, error)
	Send(ctx context.Context, to, body string) (string, error)
}

// Debugger is implemented by proxies that expose a diagnostic document.
type Debugger interface {
	Debug(ctx context.Context) (json.RawMessage, error)
}

// Diagnostics describes the inbox and, when available, the proxy behind it.
type Diagnostics struct {
	LastRefresh time.Time       `json:"lastRefresh"`
	LastError   string          `json:"lastError,omitempty"`
	Counts      sms.Counts      `json:"counts"`
	Proxy       json.RawMessage `json:"proxy,omitempty"`
	ProxyError  string          `json:"proxyError,omitempty"`
}

// Options tunes an Inbox.
type Options struct {
	MaxLength int
	Logger    *zap.Logger
}

// Inbox mirrors the proxy's inbound messages and drives AI replies to them.
type Inbox struct {
	proxy     Proxy
	responder advisor.Responder
	ledger    store.ResponseStore
	detector  langdetect.Detector
	shape     ai.Postprocess
	logger    *zap.Logger

	mu          sync.RWMutex
	messages    []sms.Message
	inflight    map[string]struct{}
	lastRefresh time.Time
	lastError   string
	subscribers map[int]chan []sms.Message
	nextSub     int
}

func NewInbox(proxy Proxy, responder advisor.Responder, ledger store.ResponseStore, detector langdetect.Detector, opts Options) *Inbox {
	if ledger == nil {
		ledger = store.NewMemory()
	}
	if detector == nil {
		detector = langdetect.NewHeuristic()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		proxy:       proxy,
		responder:   responder,
		ledger:      ledger,
		detector:    detector,
		shape:       ai.SMSChannel(opts.MaxLength),
		logger:      logger.Named("sms"),
		inflight:    make(map[string]struct{}),
		subscribers: make(map[int]chan []sms.Message),
	}
}

// Refresh re-fetches the inbox. A failed fetch empties the view.
func (i *Inbox) Refresh(ctx context.Context) []sms.Message {
	inbound, err := i.proxy.List(ctx)
	fetchErr := ""
	if err != nil {
		i.logger.Error("fetch sms messages", zap.Error(err))
		inbound = nil
		fetchErr = err.Error()
	}

	messages := make([]sms.Message, 0, len(inbound))
	for _, in := range inbound {
		messages = append(messages, i.project(ctx, in))
	}
	sort.SliceStable(messages, func(a, b int) bool {
		return messages[a].ReceivedAt.After(messages[b].ReceivedAt)
	})

	i.mu.Lock()
	i.messages = i.mergeLocked(messages)
	i.lastRefresh = time.Now().UTC()
	i.lastError = fetchErr
	snapshot := i.snapshotLocked()
	i.publishLocked(snapshot)
	i.mu.Unlock()

	i.logger.Debug("sms inbox refreshed", zap.Int("messages", len(messages)))
	return snapshot
}

// mergeLocked keeps answers applied after the projection read the ledger.
func (i *Inbox) mergeLocked(fresh []sms.Message) []sms.Message {
	for idx := range fresh {
		if fresh[idx].Responded() {
			continue
		}
		prev := i.indexLocked(fresh[idx].SID)
		if prev < 0 || !i.messages[prev].Responded() {
			continue
		}
		fresh[idx].Status = i.messages[prev].Status
		fresh[idx].AIResponse = i.messages[prev].AIResponse
		fresh[idx].Error = i.messages[prev].Error
	}
	return fresh
}

func (i *Inbox) project(ctx context.Context, in smsclient.InboundMessage) sms.Message {
	msg := sms.Message{
		SID:        in.SID,
		From:       in.From,
		Body:       in.Body,
		ReceivedAt: in.DateCreated,
		Language:   i.detector.Detect(in.Body),
		Status:     sms.StatusPending,
	}

	if in.HasResponse {
		msg.Status = sms.StatusResponded
		msg.AIResponse = in.AIResponse
	}

	rec, err := i.ledger.GetResponse(ctx, in.SID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		i.logger.Warn("load stored response", zap.String("sid", in.SID), zap.Error(err))
	case msg.Status == sms.StatusResponded:
		if msg.AIResponse == "" {
			msg.AIResponse = rec.Response
		}
	default:
		msg.Status = rec.Status
		msg.AIResponse = rec.Response
		msg.Error = rec.Error
	}
	return msg
}

// Messages returns the current snapshot, newest first.
func (i *Inbox) Messages() []sms.Message {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.snapshotLocked()
}

// Counts summarises the current snapshot.
func (i *Inbox) Counts() sms.Counts {
	return sms.Tally(i.Messages())
}

// Diagnostics reports refresh state and the proxy's own debug document.
func (i *Inbox) Diagnostics(ctx context.Context) Diagnostics {
	i.mu.RLock()
	d := Diagnostics{
		LastRefresh: i.lastRefresh,
		LastError:   i.lastError,
		Counts:      sms.Tally(i.messages),
	}
	i.mu.RUnlock()

	debugger, ok := i.proxy.(Debugger)
	if !ok {
		d.ProxyError = "proxy does not expose diagnostics"
		return d
	}
	raw, err := debugger.Debug(ctx)
	if err != nil {
		i.logger.Warn("fetch sms proxy diagnostics", zap.Error(err))
		d.ProxyError = err.Error()
		return d
	}
	d.Proxy = raw
	return d
}

// GenerateResponse answers one message. Unknown SIDs return ErrMessageNotFound;
// already answered or in-flight messages are returned unchanged.
func (i *Inbox) GenerateResponse(ctx context.Context, sid string) (sms.Message, error) {
	i.mu.Lock()
	idx := i.indexLocked(sid)
	if idx < 0 {
		i.mu.Unlock()
		return sms.Message{}, ErrMessageNotFound
	}
	msg := i.messages[idx]
	if _, busy := i.inflight[sid]; busy || msg.Responded() {
		i.mu.Unlock()
		return msg, nil
	}
	i.inflight[sid] = struct{}{}
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		delete(i.inflight, sid)
		i.mu.Unlock()
	}()

	if stored, err := i.ledger.GetResponse(ctx, sid); err == nil && stored.Status == sms.StatusResponded {
		return i.apply(stored), nil
	}

	rec := sms.ResponseRecord{
		SID:       sid,
		To:        msg.From,
		Language:  msg.Language,
		CreatedAt: time.Now().UTC(),
	}

	reply := i.responder.Respond(ctx, msg.Body, msg.Language)
	switch {
	case !reply.OK():
		rec.Status = sms.StatusFailed
		rec.Error = string(reply.Failure)
		if reply.Err != nil {
			rec.Error = reply.Err.Error()
		}
		i.logger.Warn("sms reply not generated", zap.String("sid", sid), zap.String("failure", string(reply.Failure)))
	default:
		text := i.shape.Apply(reply.Text)
		if _, err := i.proxy.Send(ctx, msg.From, text); err != nil {
			rec.Status = sms.StatusFailed
			rec.Error = err.Error()
			i.logger.Error("send sms reply", zap.String("sid", sid), zap.Error(err))
		} else {
			rec.Status = sms.StatusResponded
			rec.Response = text
			i.logger.Info("sms reply sent", zap.String("sid", sid), zap.String("language", msg.Language.String()))
		}
	}

	if err := i.ledger.PutResponse(ctx, rec); err != nil {
		i.logger.Error("store sms response", zap.String("sid", sid), zap.Error(err))
	}

	return i.apply(rec), nil
}

func (i *Inbox) apply(rec sms.ResponseRecord) sms.Message {
	i.mu.Lock()
	defer i.mu.Unlock()

	idx := i.indexLocked(rec.SID)
	if idx < 0 {
		// A refresh dropped the message while the reply was in flight.
		return sms.Message{SID: rec.SID, From: rec.To, Language: rec.Language, Status: rec.Status, AIResponse: rec.Response, Error: rec.Error}
	}
	msg := &i.messages[idx]
	msg.Status = rec.Status
	msg.AIResponse = rec.Response
	msg.Error = rec.Error

	updated := *msg
	i.publishLocked(i.snapshotLocked())
	return updated
}

func (i *Inbox) indexLocked(sid string) int {
	for idx := range i.messages {
		if i.messages[idx].SID == sid {
			return idx
		}
	}
	return -1
}

func (i *Inbox) snapshotLocked() []sms.Message {
	out := make([]sms.Message, len(i.messages))
	copy(out, i.messages)
	return out
}

// Subscribe streams inbox snapshots after every change.
func (i *Inbox) Subscribe() (<-chan []sms.Message, func()) {
	i.mu.Lock()
	defer i.mu.Unlock()

	key := i.nextSub
	i.nextSub++
	ch := make(chan []sms.Message, snapshotBuffer)
	i.subscribers[key] = ch

	return ch, func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		if sub, ok := i.subscribers[key]; ok {
			close(sub)
			delete(i.subscribers, key)
		}
	}
}

func (i *Inbox) publishLocked(snapshot []sms.Message) {
	for _, ch := range i.subscribers {
		select {
		case ch <- snapshot:
		default:
			i.logger.Warn("sms subscriber lagging, snapshot dropped")
		}
	}
}

// Poll refreshes immediately and then every interval until ctx is done.
func (i *Inbox) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	i.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			i.logger.Info("sms poller stopped")
			return nil
		case <-ticker.C:
			i.Refresh(ctx)
		}
	}
}
