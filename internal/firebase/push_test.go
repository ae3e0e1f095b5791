package firebase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberkey/cyberkey-backend/internal/core"
)

type fakeMessaging struct {
	messages []*messaging.MulticastMessage
	failing  map[string]error
	err      error
}

func (f *fakeMessaging) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.messages = append(f.messages, m)
	if f.err != nil {
		return nil, f.err
	}
	br := &messaging.BatchResponse{}
	for _, tok := range m.Tokens {
		if err, ok := f.failing[tok]; ok {
			br.FailureCount++
			br.Responses = append(br.Responses, &messaging.SendResponse{Success: false, Error: err})
			continue
		}
		br.SuccessCount++
		br.Responses = append(br.Responses, &messaging.SendResponse{Success: true, MessageID: "m-" + tok})
	}
	return br, nil
}

func TestMulticastMessage_DeliveryHints(t *testing.T) {
	data := map[string]string{"type": "key_expiring"}
	m := multicastMessage(core.PushMessage{Title: "T", Body: "B", Data: data}, []string{"a"})

	assert.Equal(t, []string{"a"}, m.Tokens)
	assert.Equal(t, "T", m.Notification.Title)
	assert.Equal(t, "B", m.Notification.Body)
	assert.Equal(t, data, m.Data)

	require.NotNil(t, m.Android)
	assert.Equal(t, "high", m.Android.Priority)
	assert.Equal(t, "FLUTTER_NOTIFICATION_CLICK", m.Android.Notification.ClickAction)
	assert.Equal(t, "default", m.Android.Notification.Sound)
	assert.Equal(t, messaging.PriorityMax, m.Android.Notification.Priority)
	assert.Equal(t, "high_importance_channel", m.Android.Notification.ChannelID)

	require.NotNil(t, m.APNS)
	aps := m.APNS.Payload.Aps
	assert.Equal(t, "default", aps.Sound)
	require.NotNil(t, aps.Badge)
	assert.Equal(t, 1, *aps.Badge)
	assert.True(t, aps.ContentAvailable)
}

func TestPushGateway_SendMulticast(t *testing.T) {
	fake := &fakeMessaging{failing: map[string]error{"bad": errors.New("transient")}}
	gw := &PushGateway{client: fake}

	res, err := gw.SendMulticast(context.Background(), core.PushMessage{Title: "t", Body: "b"}, []string{"ok", "bad"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	require.Len(t, res.Responses, 2)
	assert.Equal(t, core.PushSendResult{Token: "ok", Success: true}, res.Responses[0])
	assert.Equal(t, "bad", res.Responses[1].Token)
	assert.False(t, res.Responses[1].Invalid)
	assert.Error(t, res.Responses[1].Err)
}

func TestPushGateway_ChunksLargeBatches(t *testing.T) {
	fake := &fakeMessaging{}
	gw := &PushGateway{client: fake}

	tokens := make([]string, 1201)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}
	res, err := gw.SendMulticast(context.Background(), core.PushMessage{Title: "t", Body: "b"}, tokens)
	require.NoError(t, err)
	assert.Equal(t, 1201, res.SuccessCount)
	require.Len(t, fake.messages, 3)
	assert.Len(t, fake.messages[0].Tokens, 500)
	assert.Len(t, fake.messages[2].Tokens, 201)
	assert.Equal(t, "tok-1200", res.Responses[1200].Token)
}

func TestPushGateway_TransportError(t *testing.T) {
	gw := &PushGateway{client: &fakeMessaging{err: errors.New("unauthenticated")}}
	_, err := gw.SendMulticast(context.Background(), core.PushMessage{Title: "t", Body: "b"}, []string{"a"})
	assert.ErrorContains(t, err, "unauthenticated")
}

type fakeUsers struct {
	records map[string]*auth.UserRecord
	err     error
}

func (f *fakeUsers) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[uid], nil
}

func TestUserDirectory(t *testing.T) {
	dir := &UserDirectory{users: &fakeUsers{records: map[string]*auth.UserRecord{
		"u1": {UserInfo: &auth.UserInfo{UID: "u1", Email: "owner@example.com"}},
	}}}
	email, err := dir.EmailForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)

	failing := &UserDirectory{users: &fakeUsers{err: errors.New("backend unavailable")}}
	_, err = failing.EmailForUser(context.Background(), "u1")
	assert.ErrorContains(t, err, "backend unavailable")
}
