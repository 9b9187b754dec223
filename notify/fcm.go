package notify

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"

	"github.com/craftfolio/backend/api/bus"
	"github.com/craftfolio/backend/api/util"
)

// FCMNotifier forwards invalidation events to clients so open dashboards
// re-fetch the stale view. Each owner's devices subscribe to the
// "owner-<id>" topic; the message carries the query key that went stale.
type FCMNotifier struct {
	client *messaging.Client
}

func NewFCMNotifier(ctx context.Context, credentialsFile string) (*FCMNotifier, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %v", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &FCMNotifier{
		client: client,
	}, nil
}

// Notify matches bus.Subscriber. Delivery is best-effort and asynchronous;
// a lost push only delays the client's next refresh.
func (n *FCMNotifier) Notify(key bus.QueryKey) {
	ownerID, ok := key.OwnerID()
	if !ok {
		return
	}
	go func() {
		ctx, cancel := util.GetContextWithTimeout(context.Background())
		defer cancel()
		_, err := n.client.Send(ctx, &messaging.Message{
			Data: map[string]string{
				"key": string(key),
			},
			Topic: fmt.Sprintf("owner-%d", ownerID),
		})
		if err != nil {
			log.Println("fcm:", err)
		}
	}()
}
