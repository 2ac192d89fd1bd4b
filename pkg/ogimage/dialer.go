package ogimage

import (
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var ErrNonPublicAddress = goerr.New("avatar host resolves to a non public address")

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// isPublicAddr reports whether addr is routable on the public internet
func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return true
}

// guardPublic is a net.Dialer Control hook. It runs after name resolution, so
// a public name resolving to a private address is rejected as well.
func guardPublic(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return goerr.Wrap(err, "invalid dial address", goerr.V("address", address))
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return goerr.Wrap(err, "invalid dial address", goerr.V("address", address))
	}
	if !isPublicAddr(addr) {
		return goerr.Wrap(ErrNonPublicAddress, "refuse to dial", goerr.V("address", address))
	}
	return nil
}

func newPublicHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: guardPublic,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
