// Package notification contains the outbound channel senders used by the
// alert dispatcher. The in-app channel has no sender: creating the
// notification row is the delivery.
package notification

import (
	"context"

	"github.com/windwatch/windwatch-go/internal/datastore"
)

// Sender delivers a notification over one outbound channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, n *datastore.Notification) error
}
