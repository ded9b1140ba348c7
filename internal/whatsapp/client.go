package whatsapp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	"github.com/dalecompra/whatsapp-api-manager/internal/logging"
)

const (
	webURL = "https://web.whatsapp.com/"

	// DOM markers for the login flow. WhatsApp Web renders the QR code as
	// a canvas inside a div carrying the pairing payload in data-ref.
	qrSelector       = "div[data-ref]"
	chatPaneSelector = "#pane-side"
	composerSelector = `div[contenteditable="true"][data-tab]`

	pollInterval    = 2 * time.Second
	loadTimeout     = 60 * time.Second
	sendStepTimeout = 20 * time.Second
)

// Config controls how browser sessions are launched.
type Config struct {
	Headless bool
}

// NewFactory returns a ClientFactory producing rod-backed clients.
func NewFactory(cfg Config) domain.ClientFactory {
	return func(instanceID, authDir string) (domain.Client, error) {
		if authDir == "" {
			return nil, fmt.Errorf("auth directory is required")
		}
		return &client{
			instanceID: instanceID,
			authDir:    authDir,
			cfg:        cfg,
			events:     make(chan domain.Event, 32),
			done:       make(chan struct{}),
		}, nil
	}
}

// client drives one WhatsApp Web tab. All browser access after Start happens
// on the watch goroutine or through Send, which rod serializes internally.
type client struct {
	instanceID string
	authDir    string
	cfg        Config

	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher

	events chan domain.Event

	mu        sync.Mutex
	done      chan struct{}
	started   bool
	destroyed bool
}

func (c *client) Start(ctx context.Context) error {
	l := launcher.New().
		Headless(c.cfg.Headless).
		UserDataDir(c.authDir).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: webURL})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return fmt.Errorf("failed to open WhatsApp Web: %w", err)
	}
	if err := page.Timeout(loadTimeout).WaitLoad(); err != nil {
		_ = browser.Close()
		l.Cleanup()
		return fmt.Errorf("WhatsApp Web did not load: %w", err)
	}

	c.mu.Lock()
	if c.destroyed {
		// Destroy won the race; the browser must not outlive the client.
		c.mu.Unlock()
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("client destroyed during start")
	}
	c.launcher = l
	c.browser = browser
	c.page = page
	c.started = true
	c.mu.Unlock()

	go c.watch()
	return nil
}

func (c *client) Events() <-chan domain.Event {
	return c.events
}

// watch polls the page and translates DOM state into lifecycle events.
// It owns the events channel and closes it on exit.
func (c *client) watch() {
	defer close(c.events)

	log := logging.WithInstance(c.instanceID)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastQR string
	authenticated := false
	ready := false

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		if hasPane, _, err := c.page.Has(chatPaneSelector); err == nil && hasPane {
			if !authenticated {
				authenticated = true
				lastQR = ""
				c.deliver(domain.Event{Kind: domain.EventAuthenticated})
			}
			if !ready {
				ready = true
				c.deliver(domain.Event{Kind: domain.EventReady})
			}
			continue
		} else if err != nil {
			// The page is gone: browser closed or the session was logged
			// out from the phone.
			if ready || authenticated {
				c.deliver(domain.Event{Kind: domain.EventDisconnected, Payload: err.Error()})
			}
			log.Warn("WhatsApp Web page lost", "error", err)
			return
		}

		if ready {
			// Chat pane disappeared after being ready: remote logout.
			c.deliver(domain.Event{Kind: domain.EventDisconnected, Payload: "chat pane disappeared"})
			return
		}

		hasQR, el, err := c.page.Has(qrSelector)
		if err != nil || !hasQR {
			continue
		}
		ref, err := el.Attribute("data-ref")
		if err != nil || ref == nil || *ref == lastQR {
			continue
		}
		lastQR = *ref
		c.deliver(domain.Event{Kind: domain.EventQR, Payload: *ref})
	}
}

func (c *client) deliver(ev domain.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Send opens the conversation for the recipient and submits the message
// through the composer. address must already be normalized.
func (c *client) Send(ctx context.Context, address, body string) (string, error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return "", fmt.Errorf("client destroyed")
	}
	page := c.page
	c.mu.Unlock()

	if page == nil {
		return "", fmt.Errorf("client not started")
	}

	page = page.Context(ctx)
	if err := page.Navigate(sendURL(address, body)); err != nil {
		return "", fmt.Errorf("failed to open conversation: %w", err)
	}
	if err := page.Timeout(loadTimeout).WaitLoad(); err != nil {
		return "", fmt.Errorf("conversation did not load: %w", err)
	}

	if _, err := page.Timeout(sendStepTimeout).Element(composerSelector); err != nil {
		return "", fmt.Errorf("message composer not found: %w", err)
	}
	if err := page.Keyboard.Press(input.Enter); err != nil {
		return "", fmt.Errorf("failed to submit message: %w", err)
	}

	// Best effort: read the transport id of the newest outgoing message.
	obj, err := page.Timeout(sendStepTimeout).Eval(`() => {
		const rows = document.querySelectorAll('div.message-out[data-id]');
		return rows.length ? rows[rows.length - 1].getAttribute('data-id') : '';
	}`)
	if err != nil {
		return "", nil
	}
	return obj.Value.Str(), nil
}

// Destroy closes the browser. The user-data-dir is left on disk so the
// login can be resumed by a future client.
func (c *client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	close(c.done)
	if !c.started {
		// The watch goroutine owns the events channel once started;
		// before that, closing it here is the only way it closes.
		close(c.events)
	}
	browser := c.browser
	l := c.launcher
	c.mu.Unlock()

	if browser != nil {
		if err := browser.Close(); err != nil {
			return fmt.Errorf("failed to close browser: %w", err)
		}
	}
	if l != nil {
		l.Kill()
	}
	return nil
}

// sendURL builds the deep link that opens a conversation with the message
// prefilled. The recipient's address suffix is stripped because the web
// client expects bare digits in the phone parameter.
func sendURL(address, body string) string {
	phone := strings.TrimSuffix(address, "@c.us")
	return webURL + "send?phone=" + url.QueryEscape(phone) + "&text=" + url.QueryEscape(body)
}
