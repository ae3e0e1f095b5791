package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"github.com/cyberkey/cyberkey-backend/internal/core"
)

// maxMulticastTokens is the FCM limit on tokens per multicast call.
const maxMulticastTokens = 500

const (
	androidClickAction = "FLUTTER_NOTIFICATION_CLICK"
	androidChannelID   = "high_importance_channel"
	defaultSound       = "default"
)

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// PushGateway sends notifications through Firebase Cloud Messaging.
type PushGateway struct {
	client multicastSender
}

var _ core.PushGateway = (*PushGateway)(nil)

func NewPushGateway(client *messaging.Client) *PushGateway {
	return &PushGateway{client: client}
}

// multicastMessage applies the fixed Android and APNs delivery hints.
func multicastMessage(msg core.PushMessage, tokens []string) *messaging.MulticastMessage {
	badge := 1
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ClickAction: androidClickAction,
				Sound:       defaultSound,
				Priority:    messaging.PriorityMax,
				ChannelID:   androidChannelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:            defaultSound,
					Badge:            &badge,
					ContentAvailable: true,
				},
			},
		},
	}
}

// invalidToken reports errors after which a token will never work again.
func invalidToken(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) || messaging.IsSenderIDMismatch(err)
}

// SendMulticast sends msg to every token, in chunks of at most 500.
func (g *PushGateway) SendMulticast(ctx context.Context, msg core.PushMessage, tokens []string) (*core.PushBatchResult, error) {
	result := &core.PushBatchResult{Responses: make([]core.PushSendResult, 0, len(tokens))}

	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := min(start+maxMulticastTokens, len(tokens))
		chunk := tokens[start:end]

		br, err := g.client.SendEachForMulticast(ctx, multicastMessage(msg, chunk))
		if err != nil {
			return nil, fmt.Errorf("fcm multicast send failed: %w", err)
		}
		result.SuccessCount += br.SuccessCount
		result.FailureCount += br.FailureCount

		for i, resp := range br.Responses {
			if i >= len(chunk) {
				break
			}
			r := core.PushSendResult{Token: chunk[i], Success: resp.Success}
			if !resp.Success {
				r.Err = resp.Error
				r.Invalid = resp.Error != nil && invalidToken(resp.Error)
			}
			result.Responses = append(result.Responses, r)
		}
	}
	return result, nil
}
