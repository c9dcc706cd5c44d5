// Package hub holds the outbound collaborator clients: the hub event
// feed, hook delivery to module delegates, the token gateway and the
// payroll forwarder. All of them speak JSON over HTTP to the sidecar
// endpoints a node is configured with, and all of them have no-op
// stand-ins when an endpoint is left unset.
package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/ledger"
	"github.com/Daclify/daclifycore/internal/modules"
)

// Client posts JSON payloads to one sidecar base URL.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for a sidecar base URL. An empty base
// yields a nil client, which every method treats as "drop silently".
func NewClient(base string) *Client {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil
	}
	return &Client{base: base, http: &http.Client{Timeout: 5 * time.Second}}
}

func (c *Client) post(path string, payload any) error {
	if c == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := c.base + path
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Str("url", url).Err(err).Msg("sidecar_post_failed")
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		log.Error().Str("url", url).Int("status", resp.StatusCode).Msg("sidecar_post_rejected")
		return fmt.Errorf("sidecar %s returned status %d", url, resp.StatusCode)
	}
	return nil
}

// Notifier posts group events to the hub feed.
type Notifier struct {
	client *Client
}

func NewNotifier(client *Client) *Notifier { return &Notifier{client: client} }

func (n *Notifier) Notify(hub domain.Account, message string) error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.post("/hub/events", map[string]any{
		"hub":     hub,
		"message": message,
	})
}

// HookNotifier delivers one-way hook notifications to a module
// delegate.
type HookNotifier struct {
	client *Client
}

func NewHookNotifier(client *Client) *HookNotifier { return &HookNotifier{client: client} }

func (n *HookNotifier) Notify(delegate domain.PermissionLevel, hookAction, op domain.Account) error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.post("/hooks/"+hookAction.String(), map[string]any{
		"delegate":  delegate,
		"operation": op,
	})
}

// TokenGateway emits outbound token transfers through the sidecar.
type TokenGateway struct {
	client *Client
}

func NewTokenGateway(client *Client) ledger.TokenGateway {
	if client == nil {
		return ledger.NopGateway{}
	}
	return &TokenGateway{client: client}
}

func (g *TokenGateway) Transfer(from, to domain.Account, amount domain.Asset, memo string) error {
	return g.client.post("/token/transfer", map[string]any{
		"from":   from,
		"to":     to,
		"amount": amount,
		"memo":   memo,
	})
}

// PayrollForwarder hands payroll batches to the payroll module's
// delegate through the sidecar.
type PayrollForwarder struct {
	client *Client
}

func NewPayrollForwarder(client *Client) modules.PayrollForwarder {
	if client == nil {
		return modules.NopForwarder{}
	}
	return &PayrollForwarder{client: client}
}

func (f *PayrollForwarder) Forward(delegate domain.PermissionLevel, in modules.PayrollInput) error {
	return f.client.post("/payroll", map[string]any{
		"delegate": delegate,
		"batch":    in,
	})
}
