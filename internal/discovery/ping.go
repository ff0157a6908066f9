package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
)

const protocolICMP = 1

// Pinger checks that an address answers at the network level.
type Pinger interface {
	Ping(ctx context.Context, addr string) error
}

// ICMPPinger sends one ICMP echo request per Ping.
//
// It prefers an unprivileged datagram socket and falls back to a raw socket, which needs
// elevated rights on most systems.
type ICMPPinger struct {
	Timeout time.Duration

	seq atomic.Uint32
}

var _ Pinger = (*ICMPPinger)(nil)

func (p *ICMPPinger) Ping(ctx context.Context, addr string) error {
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return fmt.Errorf("%w: %q is not an IPv4 address", errdefs.ErrTransport, addr)
	}

	conn, network, err := listenICMP()
	if err != nil {
		return fmt.Errorf("%w: open icmp socket: %v", errdefs.ErrTransport, err)
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	seq := int(p.seq.Add(1) & 0xffff)

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("driverfleet")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("marshal echo: %w", err)
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if network == "udp4" {
		dst = &net.UDPAddr{IP: ip}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrTransport, err)
	}

	if _, err := conn.WriteTo(wb, dst); err != nil {
		return fmt.Errorf("%w: send echo to %s: %v", errdefs.ErrTransport, addr, err)
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			return fmt.Errorf("%w: no echo reply from %s: %v", errdefs.ErrTransport, addr, err)
		}

		rm, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// Datagram sockets get their identifier rewritten by the kernel.
		if network != "udp4" && echo.ID != id {
			continue
		}
		if !peerIP(peer).Equal(ip) {
			continue
		}
		return nil
	}
}

func listenICMP() (*icmp.PacketConn, string, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err == nil {
		return conn, "udp4", nil
	}
	conn, rawErr := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if rawErr != nil {
		return nil, "", fmt.Errorf("udp4: %v, ip4:icmp: %w", err, rawErr)
	}
	return conn, "ip4:icmp", nil
}

func peerIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}
