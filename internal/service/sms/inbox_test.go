package sms

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cropsentinel/advisor/backend/internal/client/advisor"
	smsclient "github.com/cropsentinel/advisor/backend/internal/client/sms"
	"github.com/cropsentinel/advisor/backend/internal/model/language"
	"github.com/cropsentinel/advisor/backend/internal/model/sms"
	"github.com/cropsentinel/advisor/backend/internal/store"
)

// genai pulls in opencensus, which starts a stats worker at init.
var ignoreCensusWorker = goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start")

type sentSMS struct {
	to, body string
}

type fakeProxy struct {
	mu      sync.Mutex
	inbound []smsclient.InboundMessage
	listErr error
	sendErr error
	lists   int
	sent    []sentSMS
}

func (p *fakeProxy) List(context.Context) ([]smsclient.InboundMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists++
	if p.listErr != nil {
		return nil, p.listErr
	}
	return append([]smsclient.InboundMessage(nil), p.inbound...), nil
}

func (p *fakeProxy) Send(_ context.Context, to, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return "", p.sendErr
	}
	p.sent = append(p.sent, sentSMS{to: to, body: body})
	return "SMout", nil
}

func (p *fakeProxy) listCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lists
}

type cannedResponder struct {
	reply advisor.Reply
}

func (r cannedResponder) Respond(_ context.Context, _ string, code language.Code) advisor.Reply {
	reply := r.reply
	reply.Language = code
	return reply
}

func generated(text string) cannedResponder {
	return cannedResponder{reply: advisor.Reply{Text: text, Outcome: advisor.Generated}}
}

var base = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func sampleInbound() []smsclient.InboundMessage {
	return []smsclient.InboundMessage{
		{SID: "SM1", From: "+251911000001", Body: "akkam jirta maal barbaaddu", DateCreated: base},
		{SID: "SM2", From: "+251911000002", Body: "ቲማቲም ቅጠል ቢጫ ሆኗል", DateCreated: base.Add(time.Hour)},
		{SID: "SM3", From: "+251911000003", Body: "my maize has rust", DateCreated: base.Add(2 * time.Hour), HasResponse: true, AIResponse: "Use resistant seed."},
	}
}

func TestRefreshProjectsInbox(t *testing.T) {
	ledger := store.NewMemory()
	require.NoError(t, ledger.PutResponse(context.Background(), sms.ResponseRecord{
		SID: "SM1", Status: sms.StatusFailed, Error: "send failed",
	}))

	inbox := NewInbox(&fakeProxy{inbound: sampleInbound()}, generated("x"), ledger, nil, Options{})
	msgs := inbox.Refresh(context.Background())

	require.Len(t, msgs, 3)
	assert.Equal(t, "SM3", msgs[0].SID, "newest first")
	assert.Equal(t, sms.StatusResponded, msgs[0].Status)
	assert.Equal(t, "Use resistant seed.", msgs[0].AIResponse)
	assert.Equal(t, language.Amharic, msgs[1].Language)
	assert.Equal(t, sms.StatusPending, msgs[1].Status)
	assert.Equal(t, language.Oromo, msgs[2].Language)
	assert.Equal(t, sms.StatusFailed, msgs[2].Status)

	assert.Equal(t, sms.Counts{Total: 3, Pending: 1, Responded: 1, Failed: 1}, inbox.Counts())
}

func TestRefreshErrorEmptiesInbox(t *testing.T) {
	proxy := &fakeProxy{inbound: sampleInbound()}
	inbox := NewInbox(proxy, generated("x"), nil, nil, Options{})
	require.Len(t, inbox.Refresh(context.Background()), 3)

	proxy.mu.Lock()
	proxy.listErr = errors.New("proxy down")
	proxy.mu.Unlock()

	assert.Empty(t, inbox.Refresh(context.Background()))
	assert.Empty(t, inbox.Messages())
}

func TestGenerateResponseSendsOnce(t *testing.T) {
	proxy := &fakeProxy{inbound: sampleInbound()}
	ledger := store.NewMemory()
	inbox := NewInbox(proxy, generated("**Apply** copper fungicide."), ledger, nil, Options{})
	inbox.Refresh(context.Background())

	msg, err := inbox.GenerateResponse(context.Background(), "SM2")
	require.NoError(t, err)
	assert.Equal(t, sms.StatusResponded, msg.Status)
	assert.Equal(t, "Apply copper fungicide.", msg.AIResponse)

	_, err = inbox.GenerateResponse(context.Background(), "SM2")
	require.NoError(t, err)

	require.Len(t, proxy.sent, 1)
	assert.Equal(t, sentSMS{to: "+251911000002", body: "Apply copper fungicide."}, proxy.sent[0])

	rec, err := ledger.GetResponse(context.Background(), "SM2")
	require.NoError(t, err)
	assert.Equal(t, sms.StatusResponded, rec.Status)
	assert.Equal(t, language.Amharic, rec.Language)
	assert.Equal(t, "+251911000002", rec.To)
}

func TestGenerateResponseSkipsAnswered(t *testing.T) {
	proxy := &fakeProxy{inbound: sampleInbound()}
	inbox := NewInbox(proxy, generated("again"), nil, nil, Options{})
	inbox.Refresh(context.Background())

	msg, err := inbox.GenerateResponse(context.Background(), "SM3")
	require.NoError(t, err)
	assert.Equal(t, "Use resistant seed.", msg.AIResponse)
	assert.Empty(t, proxy.sent)
}

func TestGenerateResponseFallbackSendsNothing(t *testing.T) {
	proxy := &fakeProxy{inbound: sampleInbound()}
	responder := cannedResponder{reply: advisor.Reply{
		Text: advisor.FallbackText(language.English), Outcome: advisor.Fallback,
		Failure: advisor.FailureStatus, StatusCode: 500,
	}}
	inbox := NewInbox(proxy, responder, nil, nil, Options{})
	inbox.Refresh(context.Background())

	msg, err := inbox.GenerateResponse(context.Background(), "SM1")
	require.NoError(t, err)
	assert.Equal(t, sms.StatusFailed, msg.Status)
	assert.Empty(t, msg.AIResponse)
	assert.Empty(t, proxy.sent)
}

func TestGenerateResponseSendFailure(t *testing.T) {
	proxy := &fakeProxy{inbound: sampleInbound(), sendErr: errors.New("carrier rejected")}
	inbox := NewInbox(proxy, generated("ok"), nil, nil, Options{})
	inbox.Refresh(context.Background())

	msg, err := inbox.GenerateResponse(context.Background(), "SM1")
	require.NoError(t, err)
	assert.Equal(t, sms.StatusFailed, msg.Status)
	assert.Equal(t, "carrier rejected", msg.Error)
}

func TestGenerateResponseUnknownSID(t *testing.T) {
	inbox := NewInbox(&fakeProxy{}, generated("ok"), nil, nil, Options{})
	inbox.Refresh(context.Background())

	_, err := inbox.GenerateResponse(context.Background(), "nope")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestGenerateResponseTruncatesForSMS(t *testing.T) {
	proxy := &fakeProxy{inbound: sampleInbound()}
	inbox := NewInbox(proxy, generated(strings.Repeat("word ", 20)), nil, nil, Options{MaxLength: 12})
	inbox.Refresh(context.Background())

	_, err := inbox.GenerateResponse(context.Background(), "SM1")
	require.NoError(t, err)
	require.Len(t, proxy.sent, 1)
	assert.LessOrEqual(t, len([]rune(proxy.sent[0].body)), 12)
	assert.True(t, strings.HasSuffix(proxy.sent[0].body, "..."))
}

// gatedLedger reads the next GetResponse for sid, then parks until release
// is closed before returning the stale result.
type gatedLedger struct {
	*store.Memory
	sid     string
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (l *gatedLedger) GetResponse(ctx context.Context, sid string) (sms.ResponseRecord, error) {
	rec, err := l.Memory.GetResponse(ctx, sid)
	if sid == l.sid && l.armed.CompareAndSwap(true, false) {
		close(l.entered)
		<-l.release
	}
	return rec, err
}

func TestRefreshDuringResponseKeepsAnswer(t *testing.T) {
	proxy := &fakeProxy{inbound: sampleInbound()}
	ledger := &gatedLedger{
		Memory:  store.NewMemory(),
		sid:     "SM1",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	inbox := NewInbox(proxy, generated("Rotate crops."), ledger, nil, Options{})
	inbox.Refresh(context.Background())

	ledger.armed.Store(true)
	refreshed := make(chan struct{})
	go func() {
		inbox.Refresh(context.Background())
		close(refreshed)
	}()
	<-ledger.entered

	msg, err := inbox.GenerateResponse(context.Background(), "SM1")
	require.NoError(t, err)
	require.Equal(t, sms.StatusResponded, msg.Status)

	close(ledger.release)
	<-refreshed

	for _, m := range inbox.Messages() {
		if m.SID == "SM1" {
			assert.Equal(t, sms.StatusResponded, m.Status)
			assert.Equal(t, "Rotate crops.", m.AIResponse)
		}
	}

	_, err = inbox.GenerateResponse(context.Background(), "SM1")
	require.NoError(t, err)

	proxy.mu.Lock()
	defer proxy.mu.Unlock()
	assert.Len(t, proxy.sent, 1)
}

func TestGenerateResponseHonoursLedger(t *testing.T) {
	proxy := &fakeProxy{inbound: sampleInbound()}
	ledger := store.NewMemory()
	inbox := NewInbox(proxy, generated("again"), ledger, nil, Options{})
	inbox.Refresh(context.Background())

	require.NoError(t, ledger.PutResponse(context.Background(), sms.ResponseRecord{
		SID: "SM2", To: "+251911000002", Status: sms.StatusResponded, Response: "Already sent.",
	}))

	msg, err := inbox.GenerateResponse(context.Background(), "SM2")
	require.NoError(t, err)
	assert.Equal(t, sms.StatusResponded, msg.Status)
	assert.Equal(t, "Already sent.", msg.AIResponse)
	assert.Empty(t, proxy.sent)
}

type debugProxy struct {
	*fakeProxy
	doc json.RawMessage
	err error
}

func (p debugProxy) Debug(context.Context) (json.RawMessage, error) {
	return p.doc, p.err
}

func TestDiagnostics(t *testing.T) {
	proxy := debugProxy{fakeProxy: &fakeProxy{inbound: sampleInbound()}, doc: json.RawMessage(`{"phoneNumber":"+15550001111"}`)}
	inbox := NewInbox(proxy, generated("ok"), nil, nil, Options{})

	before := inbox.Diagnostics(context.Background())
	assert.True(t, before.LastRefresh.IsZero())

	inbox.Refresh(context.Background())
	d := inbox.Diagnostics(context.Background())
	assert.False(t, d.LastRefresh.IsZero())
	assert.Empty(t, d.LastError)
	assert.Equal(t, 3, d.Counts.Total)
	assert.JSONEq(t, `{"phoneNumber":"+15550001111"}`, string(d.Proxy))

	proxy.fakeProxy.mu.Lock()
	proxy.fakeProxy.listErr = errors.New("proxy down")
	proxy.fakeProxy.mu.Unlock()
	inbox.Refresh(context.Background())

	broken := NewInbox(debugProxy{fakeProxy: proxy.fakeProxy, err: errors.New("no debug")}, generated("ok"), nil, nil, Options{})
	broken.Refresh(context.Background())
	d = broken.Diagnostics(context.Background())
	assert.Equal(t, "proxy down", d.LastError)
	assert.Equal(t, "no debug", d.ProxyError)
	assert.Empty(t, d.Proxy)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	inbox := NewInbox(&fakeProxy{inbound: sampleInbound()}, generated("ok"), nil, nil, Options{})
	updates, cancel := inbox.Subscribe()
	defer cancel()

	inbox.Refresh(context.Background())

	select {
	case snapshot := <-updates:
		assert.Len(t, snapshot, 3)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}

func TestPollRefreshesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCensusWorker)

	proxy := &fakeProxy{inbound: sampleInbound()}
	inbox := NewInbox(proxy, generated("ok"), nil, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Poll(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return proxy.listCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Error(t, inbox.Poll(context.Background(), 0))
}
