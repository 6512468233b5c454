package mobilebridge

import (
	"fmt"

	"golang.org/x/net/proxy"
)

// DialerFor returns a SOCKS5 dialer over the session's Tor client at
// socksAddr (e.g. "127.0.0.1:9050"). A caller that wants to health-probe
// the worker endpoints POST /workers just registered, over Tor rather
// than in the clear, can use this instead of opening a direct
// connection.
func DialerFor(socksAddr string) (proxy.Dialer, error) {
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("construct SOCKS5 dialer: %w", err)
	}
	return dialer, nil
}
