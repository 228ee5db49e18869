package target

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ExpandCIDR turns a CIDR range (or a single address) and a comma-separated
// port list into target URLs. Without ports the scheme default is used.
// Network and broadcast addresses are dropped for IPv4 ranges wider than /31.
func ExpandCIDR(cidr, ports, scheme string) ([]string, error) {
	prefix, err := parsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return nil, err
	}
	if scheme == "" {
		scheme = "https"
	}

	portList, err := parsePorts(ports)
	if err != nil {
		return nil, err
	}
	if len(portList) == 0 {
		if scheme == "https" {
			portList = []int{443}
		} else {
			portList = []int{80}
		}
	}

	first := prefix.Masked().Addr()
	last := lastAddr(prefix)
	trimEnds := first.Is4() && prefix.Bits() < 31

	var urls []string
	for a := first; prefix.Contains(a); a = a.Next() {
		if trimEnds && (a == first || a == last) {
			continue
		}
		for _, p := range portList {
			urls = append(urls, formatURL(scheme, a, p))
		}
		if a == last {
			break
		}
	}
	return urls, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: bad CIDR %q", ErrInvalid, s)
		}
		return p, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: bad CIDR or IP %q", ErrInvalid, s)
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func parsePorts(s string) ([]int, error) {
	var ports []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("%w: bad port %q", ErrInvalid, f)
		}
		ports = append(ports, n)
	}
	return ports, nil
}

func lastAddr(p netip.Prefix) netip.Addr {
	b := p.Masked().Addr().AsSlice()
	host := len(b)*8 - p.Bits()
	for i := len(b) - 1; i >= 0 && host > 0; i-- {
		n := min(host, 8)
		b[i] |= byte(1<<n - 1)
		host -= n
	}
	a, _ := netip.AddrFromSlice(b)
	return a
}

func formatURL(scheme string, a netip.Addr, port int) string {
	host := a.String()
	if a.Is6() {
		host = "[" + host + "]"
	}
	if (scheme == "https" && port == 443) || (scheme == "http" && port == 80) {
		return scheme + "://" + host
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}
