package discovery

import (
	"fmt"
	"net"
)

const Loopback = "127.0.0.1"

// Candidates returns the addresses a scan probes: every host of cidr, or of the /24 around the
// primary IPv4 address when cidr is empty, plus loopback and the local address.
func Candidates(cidr string) ([]string, error) {
	return buildCandidates(PrimaryIPv4(), cidr)
}

func buildCandidates(local net.IP, cidr string) ([]string, error) {
	var hosts []string

	switch {
	case cidr != "":
		expanded, err := ExpandCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid scan range %q: %w", cidr, err)
		}
		hosts = expanded
	case local != nil:
		subnet := &net.IPNet{IP: local.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}
		hosts, _ = ExpandCIDR(subnet.String())
	}

	hosts = append(hosts, Loopback)
	if local != nil {
		hosts = append(hosts, local.String())
	}

	return dedupe(hosts), nil
}

// ExpandCIDR lists the host addresses of an IPv4 network, skipping the network and broadcast
// addresses unless the prefix is /31 or /32.
func ExpandCIDR(cidr string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	base := ipnet.IP.To4()
	if base == nil {
		return nil, fmt.Errorf("%s is not an IPv4 network", cidr)
	}
	ones, _ := ipnet.Mask.Size()
	if ones < 16 {
		return nil, fmt.Errorf("%s is too large to scan, use /16 or smaller", cidr)
	}

	var ips []string
	for ip := cloneIP(base); ipnet.Contains(ip); incIP(ip) {
		if ones < 31 && (ip.Equal(base) || isBroadcast(ip, ipnet)) {
			continue
		}
		ips = append(ips, ip.String())
	}

	return ips, nil
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}

func isBroadcast(ip net.IP, ipnet *net.IPNet) bool {
	ip4, base, mask := ip.To4(), ipnet.IP.To4(), ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	for i := range ip4 {
		if ip4[i] != base[i]|^mask[i] {
			return false
		}
	}
	return true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// PrimaryIPv4 returns the first IPv4 address of an up, non-loopback interface.
func PrimaryIPv4() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip := ipnet.IP.To4(); ip != nil && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() {
				return ip
			}
		}
	}
	return nil
}
