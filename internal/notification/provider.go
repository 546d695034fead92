// Package notification delivers alert digests to subscribers and run reports
// to operators, and decides when each alert is due.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/gbif-alert/gbif-alert-go/internal/conf"
)

// Message is one outgoing notification.
type Message struct {
	Title string
	Body  string
}

// Provider delivers a message. A nil error means confirmed delivery; the
// scheduler only advances alert timestamps on confirmed deliveries.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// ShoutrrrProvider sends via nicholas-fedor/shoutrrr, one sender shared by
// all configured URLs.
type ShoutrrrProvider struct {
	name    string
	urls    []string
	sender  *router.ServiceRouter
	timeout time.Duration
}

// NewShoutrrrProvider builds and validates a provider for the given URLs.
func NewShoutrrrProvider(name string, urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	p := &ShoutrrrProvider{
		name:    strings.TrimSpace(name),
		urls:    slices.Clone(urls),
		timeout: timeout,
	}
	if p.name == "" {
		p.name = "shoutrrr"
	}
	if len(p.urls) == 0 {
		return nil, fmt.Errorf("at least one notification URL is required")
	}

	sender, err := shoutrrr.CreateSender(p.urls...)
	if err != nil {
		return nil, fmt.Errorf("creating notification sender: %w", err)
	}
	p.sender = sender
	if p.timeout > 0 {
		p.sender.Timeout = p.timeout
	}
	p.sender.SetLogger(log.New(io.Discard, "", 0))
	return p, nil
}

func (p *ShoutrrrProvider) Name() string { return p.name }

// Send delivers the message to every configured URL. The first failure is
// returned; partial delivery counts as failure so the scheduler retries.
func (p *ShoutrrrProvider) Send(ctx context.Context, msg *Message) error {
	if p.sender == nil {
		return fmt.Errorf("notification sender not initialized")
	}
	_ = ctx // the router handles its own timeouts

	params := stypes.Params{}
	if msg.Title != "" {
		params.SetTitle(msg.Title)
	}
	errs := p.sender.Send(msg.Body, &params)
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("delivering notification: %w", err)
		}
	}
	return nil
}

// NewFromSettings builds the subscriber-facing provider from configuration,
// or nil when notifications are disabled.
func NewFromSettings(settings *conf.Settings) (*ShoutrrrProvider, error) {
	if !settings.Notification.Enabled || len(settings.Notification.URLs) == 0 {
		return nil, nil
	}
	timeout := time.Duration(settings.Notification.TimeoutSeconds) * time.Second
	return NewShoutrrrProvider("alerts", settings.Notification.URLs, timeout)
}
