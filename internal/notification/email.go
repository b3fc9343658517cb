package notification

import (
	"context"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
)

const defaultSendTimeout = 30 * time.Second

// EmailSender sends email via a shoutrrr smtp service URL.
type EmailSender struct {
	sender *router.ServiceRouter
}

// NewEmailSender builds and validates the shoutrrr sender from settings.
func NewEmailSender(settings *conf.Settings) (*EmailSender, error) {
	sender, err := shoutrrr.CreateSender(settings.SMTP.URL)
	if err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("operation", "create_sender").
			Build()
	}
	sender.Timeout = defaultSendTimeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &EmailSender{sender: sender}, nil
}

// Name implements Sender.
func (e *EmailSender) Name() string { return "email" }

// Send implements Sender. The shoutrrr router handles its own timeouts.
func (e *EmailSender) Send(ctx context.Context, n *datastore.Notification) error {
	_ = ctx

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}

	errs := e.sender.Send(n.Message, &params)
	for _, err := range errs {
		if err != nil {
			return errors.New(err).
				Component("notification").
				Category(errors.CategoryDelivery).
				Context("channel", string(n.Channel)).
				Context("notification_id", n.ID).
				Build()
		}
	}
	return nil
}
