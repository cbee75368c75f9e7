// Package api exposes the application's JSON-RPC and REST methods as a
// typed method tree. Every RPC method has a ...Request builder that returns
// an rpc.Request so that callers can combine several calls in one batch.
package api

import (
	"fmt"
	"log/slog"

	"dbadmin/internal/config"
	"dbadmin/internal/httpx"
	"dbadmin/pkg/rest"
	"dbadmin/pkg/rpc"
)

// Client groups the API methods by resource.
type Client struct {
	RPC  *rpc.Client
	REST *rest.Client

	Tables       *TablesAPI
	Columns      *ColumnsAPI
	Schemas      *SchemasAPI
	Databases    *DatabasesAPI
	DataModeling *DataModelingAPI
	Records      *RecordsAPI
	DataFiles    *DataFilesAPI
	Auth         *AuthAPI
}

// New builds a Client from already configured RPC and REST clients.
func New(r *rpc.Client, rc *rest.Client) *Client {
	return &Client{
		RPC:          r,
		REST:         rc,
		Tables:       &TablesAPI{rpc: r, rest: rc},
		Columns:      &ColumnsAPI{rpc: r, rest: rc},
		Schemas:      &SchemasAPI{rpc: r},
		Databases:    &DatabasesAPI{rpc: r},
		DataModeling: &DataModelingAPI{rpc: r},
		Records:      &RecordsAPI{rest: rc},
		DataFiles:    &DataFilesAPI{rest: rc},
		Auth:         &AuthAPI{http: rc.HTTP()},
	}
}

// NewFromConfig builds the HTTP transport described by cfg and wraps it.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("api: config is nil")
	}
	opts := []httpx.Option{
		httpx.WithTimeout(cfg.HTTPTimeout),
		httpx.WithLogger(logger),
		httpx.WithRetryPolicy(httpx.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  httpx.DefaultRetryPolicy.BaseDelay,
			MaxDelay:   httpx.DefaultRetryPolicy.MaxDelay,
			Jitter:     httpx.DefaultRetryPolicy.Jitter,
		}),
	}
	switch {
	case cfg.Token != "":
		opts = append(opts, httpx.WithBearerToken(cfg.Token))
	case cfg.HasBasicAuth():
		opts = append(opts, httpx.WithBasicAuth(cfg.Username, cfg.Password))
	}
	if cfg.RateLimitRPS > 0 {
		opts = append(opts, httpx.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	h, err := httpx.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return New(rpc.New(h, rpc.WithEndpoint(cfg.RPCEndpoint)), rest.New(h, cfg.RESTPrefix)), nil
}
