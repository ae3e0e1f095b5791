package core

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/db/memory"
	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/mailer"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newRepos() *db.Repositories { return memory.NewStore().Repositories() }

func newTestEncryption(t *testing.T) EncryptionService {
	t.Helper()
	enc, err := NewEncryptionService(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)
	return enc
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []PushMessage
	tokens  [][]string
	invalid map[string]bool
	failed  map[string]bool
	err     error
}

func (g *fakeGateway) SendMulticast(_ context.Context, msg PushMessage, tokens []string) (*PushBatchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, msg)
	g.tokens = append(g.tokens, tokens)
	if g.err != nil {
		return nil, g.err
	}
	res := &PushBatchResult{}
	for _, tok := range tokens {
		r := PushSendResult{Token: tok, Success: true}
		if g.invalid[tok] || g.failed[tok] {
			r.Success = false
			r.Invalid = g.invalid[tok]
			res.FailureCount++
		} else {
			res.SuccessCount++
		}
		res.Responses = append(res.Responses, r)
	}
	return res, nil
}

type sentMail struct {
	settings mailer.SMTPSettings
	msg      mailer.Message
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *fakeSender) Send(_ context.Context, settings mailer.SMTPSettings, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{settings: settings, msg: msg})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeResolver struct {
	emails map[string]string
	err    error
}

func (r *fakeResolver) EmailForUser(_ context.Context, userID string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.emails[userID], nil
}

type dispatchCall struct {
	userID       string
	notification models.Notification
}

type fakeNotifier struct {
	mu     sync.Mutex
	calls  []dispatchCall
	result *models.DispatchResult
	err    error
}

func (n *fakeNotifier) Dispatch(_ context.Context, userID string, notification models.Notification) (*models.DispatchResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, dispatchCall{userID: userID, notification: notification})
	if n.err != nil {
		return &models.DispatchResult{Error: n.err.Error()}, n.err
	}
	if n.result != nil {
		r := *n.result
		return &r, nil
	}
	return &models.DispatchResult{Success: true, SuccessCount: 1}, nil
}

type publishedEvent struct {
	entry   models.ActivityLog
	headers http.Header
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishActivityCreated(_ context.Context, entry *models.ActivityLog, headers http.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{entry: *entry, headers: headers})
	return nil
}

var nopLogger = zap.NewNop()
