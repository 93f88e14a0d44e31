// ABOUTME: Client with provider routing and a middleware chain over generate calls.
// ABOUTME: Middleware runs in registration order inbound and reverse order outbound.

package llm

import (
	"context"
	"fmt"
)

// Middleware wraps one generate call. It may short-circuit (never calling
// next), transform the request, or observe the response. The cache layer is
// implemented as one of these.
type Middleware func(ctx context.Context, req Request, next NextFunc) (*Response, error)

// NextFunc continues the middleware chain.
type NextFunc func(ctx context.Context, req Request) (*Response, error)

// Client routes requests to provider adapters and applies the middleware chain.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	middleware      []Middleware
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers an adapter under name. The first registered provider
// becomes the default unless one was set explicitly.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
		if c.defaultProvider == "" {
			c.defaultProvider = name
		}
	}
}

// WithDefaultProvider sets the provider used when a Request names none.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware appends middleware to the chain.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewClient builds a Client from the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{providers: make(map[string]ProviderAdapter)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: "no provider specified and no default provider configured",
		}}
	}

	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("provider %q not registered", name),
		}}
	}
	return adapter, nil
}

// Complete sends a request through the middleware chain and on to the
// resolved provider adapter.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	handler := func(ctx context.Context, req Request) (*Response, error) {
		adapter, err := c.resolveProvider(req)
		if err != nil {
			return nil, err
		}
		return adapter.Complete(ctx, req)
	}

	// Wrap in reverse order so the first registered middleware is outermost.
	chain := handler
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := chain
		chain = func(ctx context.Context, req Request) (*Response, error) {
			return mw(ctx, req, next)
		}
	}

	return chain(ctx, req)
}

// Close shuts down every registered adapter, collecting errors.
func (c *Client) Close() error {
	var combined error
	for name, adapter := range c.providers {
		if err := adapter.Close(); err != nil {
			if combined == nil {
				combined = fmt.Errorf("closing provider %q: %w", name, err)
			} else {
				combined = fmt.Errorf("%w; closing provider %q: %v", combined, name, err)
			}
		}
	}
	return combined
}
