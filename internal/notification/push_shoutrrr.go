package notification

import (
	"context"
	"io"
	"log"
	"strings"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
)

// ShoutrrrProvider delivers through a single nicholas-fedor/shoutrrr service
// URL. One provider is built per configured push target.
type ShoutrrrProvider struct {
	name       string
	enabled    bool
	url        string
	categories map[string]bool
	sender     *router.ServiceRouter
}

// NewShoutrrrProvider builds a provider from one configured push target.
func NewShoutrrrProvider(target *conf.PushTargetConfig) *ShoutrrrProvider {
	sp := &ShoutrrrProvider{
		name:       strings.TrimSpace(target.Name),
		enabled:    true,
		url:        strings.TrimSpace(target.URL),
		categories: categoryFilter(target.Categories),
	}
	if sp.name == "" {
		// Fall back to the service scheme, e.g. "telegram" for telegram://...
		if scheme, _, ok := strings.Cut(sp.url, "://"); ok && scheme != "" {
			sp.name = scheme
		} else {
			sp.name = "shoutrrr"
		}
	}
	return sp
}

func (s *ShoutrrrProvider) GetName() string { return s.name }

func (s *ShoutrrrProvider) IsEnabled() bool { return s.enabled }

func (s *ShoutrrrProvider) SupportsCategory(category string) bool {
	return supportsCategory(s.categories, category)
}

// ValidateConfig builds the sender, which validates the service URL.
func (s *ShoutrrrProvider) ValidateConfig() error {
	if s.url == "" {
		return errors.Newf("push target %s: URL is required", s.name).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(s.url)
	if err != nil {
		// Scrub the error text, shoutrrr echoes service URLs that can
		// carry tokens.
		return errors.Newf("push target %s: %s", s.name, errors.ScrubMessage(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	s.sender = sender
	s.sender.Timeout = defaultPushTimeout
	s.sender.SetLogger(log.New(io.Discard, "", 0))
	return nil
}

func (s *ShoutrrrProvider) Send(ctx context.Context, n *datastore.Notification) error {
	if s.sender == nil {
		return &deliveryError{
			Err:      errors.Newf("shoutrrr sender not initialized").Component("notification").Category(errors.CategoryPushDelivery).Build(),
			Category: errorCategoryValidation,
		}
	}
	_ = ctx // the router applies its own timeout

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	errs := s.sender.Send(n.Message, &params)
	for _, sendErr := range errs {
		if sendErr == nil {
			continue
		}
		return &deliveryError{
			Err: errors.Newf("%s", errors.ScrubMessage(sendErr.Error())).
				Component("notification").
				Category(errors.CategoryPushDelivery).
				Context("provider", s.name).
				Build(),
			Category: errorCategoryProvider,
		}
	}
	return nil
}
