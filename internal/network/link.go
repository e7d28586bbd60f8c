// Package network observes and joins the host network link.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/logger"
)

const (
	unassignedAddress = "0.0.0.0"
	unknownMAC        = "00:00:00:00:00:00"
)

var ErrLinkDown = errors.New("network link is down")

type Link interface {
	Connect(ssid, secret string) error
	IsConnected() bool
	// LocalAddress is the IPv4 address in dotted-quad form, 0.0.0.0 when unassigned.
	LocalAddress() string
	// HardwareAddress is the upper-case colon separated MAC address.
	HardwareAddress() string
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// addressPoll is how often Connect checks for a DHCP lease after the
// associate command succeeded.
const addressPoll = 500 * time.Millisecond

type hostLink struct {
	configuration configuration.NetworkConfiguration
	interfaces    func() (psnet.InterfaceStatList, error)
	runCommand    commandRunner
	addressPoll   time.Duration
	logger        logger.Logger
}

func NewLink(config *configuration.Configuration, l logger.Logger) Link {
	return &hostLink{
		configuration: config.Network,
		interfaces:    psnet.Interfaces,
		runCommand:    runCommand,
		addressPoll:   addressPoll,
		logger:        l.WithPrefix("[Network]"),
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Connect runs the associate command only when the link has no address,
// then waits for one until AssociateTimeout.
func (h *hostLink) Connect(ssid, secret string) error {
	if h.IsConnected() {
		return nil
	}
	if len(h.configuration.AssociateCommand) == 0 {
		return ErrLinkDown
	}

	args := h.expandCommand(ssid, secret)

	ctx, cancel := context.WithTimeout(context.Background(), h.configuration.AssociateTimeout)
	defer cancel()

	h.logger.Debug("Running '%v' to join '%v'", args[0], ssid)
	output, err := h.runCommand(ctx, args[0], args[1:]...)
	if err != nil {
		return fmt.Errorf("associate with %q: %w: %s", ssid, err, strings.TrimSpace(string(output)))
	}

	return h.waitForAddress(ctx)
}

func (h *hostLink) waitForAddress(ctx context.Context) error {
	ticker := time.NewTicker(h.addressPoll)
	defer ticker.Stop()

	for !h.IsConnected() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: no address after %v", ErrLinkDown, h.configuration.AssociateTimeout)
		case <-ticker.C:
		}
	}

	return nil
}

func (h *hostLink) expandCommand(ssid, secret string) []string {
	replacer := strings.NewReplacer(
		"{ssid}", ssid,
		"{secret}", secret,
		"{interface}", h.configuration.Interface,
	)

	args := make([]string, len(h.configuration.AssociateCommand))
	for i, arg := range h.configuration.AssociateCommand {
		args[i] = replacer.Replace(arg)
	}
	return args
}

func (h *hostLink) IsConnected() bool {
	iface, ok := h.lookup()
	return ok && isUp(iface) && ipv4(iface) != ""
}

func (h *hostLink) LocalAddress() string {
	iface, ok := h.lookup()
	if !ok {
		return unassignedAddress
	}
	if addr := ipv4(iface); addr != "" {
		return addr
	}
	return unassignedAddress
}

func (h *hostLink) HardwareAddress() string {
	iface, ok := h.lookup()
	if !ok || iface.HardwareAddr == "" {
		return unknownMAC
	}
	return strings.ToUpper(iface.HardwareAddr)
}

// lookup returns the configured interface, or the first non-loopback
// interface that is up and has an IPv4 address.
func (h *hostLink) lookup() (psnet.InterfaceStat, bool) {
	list, err := h.interfaces()
	if err != nil {
		h.logger.Debug("Listing interfaces failed: %v", err)
		return psnet.InterfaceStat{}, false
	}

	for _, iface := range list {
		if h.configuration.Interface != "" {
			if iface.Name == h.configuration.Interface {
				return iface, true
			}
			continue
		}
		if !hasFlag(iface, "loopback") && isUp(iface) && ipv4(iface) != "" {
			return iface, true
		}
	}

	return psnet.InterfaceStat{}, false
}

func isUp(iface psnet.InterfaceStat) bool {
	return hasFlag(iface, "up")
}

func hasFlag(iface psnet.InterfaceStat, flag string) bool {
	for _, f := range iface.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

func ipv4(iface psnet.InterfaceStat) string {
	for _, addr := range iface.Addrs {
		ip, _, err := net.ParseCIDR(addr.Addr)
		if err != nil {
			ip = net.ParseIP(addr.Addr)
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
