package youtube

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

const httpTimeout = 15 * time.Second

// NewHTTPClient returns the client every provider call goes through. proxyStr
// may be an http(s), socks5 or socks4 URL; an empty string means direct.
func NewHTTPClient(proxyStr string, logger zerolog.Logger) (*http.Client, error) {
	if proxyStr == "" {
		logger.Debug().Msg("no proxy selected, going direct")
		return &http.Client{Timeout: httpTimeout}, nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy format: %w", err)
	}

	var transport *http.Transport

	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("SOCKS5 dialer error: %w", err)
		}
		transport = &http.Transport{DialContext: contextDialer(dialer)}
	case "socks4":
		// go-socks4 registers the socks4 scheme with x/net/proxy
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{
			Timeout: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("SOCKS4 dialer error: %w", err)
		}
		transport = &http.Transport{DialContext: contextDialer(dialer)}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	logger.Info().Str("scheme", proxyURL.Scheme).Str("host", proxyURL.Host).Msg("using proxy for provider calls")

	return &http.Client{
		Timeout:   httpTimeout,
		Transport: transport,
	}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
