package net

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// Scheme prefixes share links, e.g. emojiart://192.168.1.20:8888.
const Scheme = "emojiart://"

// GetOutgoingIP finds the preferred local IP address for the host to share.
func GetOutgoingIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// No route out: fall back to checking local interfaces.
		return getLocalIPFallback()
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func getLocalIPFallback() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	slog.Warn("no non-loopback address found, share link will only work locally")
	return "127.0.0.1", nil
}

// ShareLink builds the link a viewer opens to follow a host.
func ShareLink(host string, port int) string {
	return Scheme + net.JoinHostPort(host, fmt.Sprint(port))
}

// ParseShareLink returns the host:port a share link points at.
func ParseShareLink(link string) (string, error) {
	if !strings.HasPrefix(link, Scheme) {
		return "", fmt.Errorf("not a share link: %q", link)
	}
	addr := strings.TrimSuffix(strings.TrimPrefix(link, Scheme), "/")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", fmt.Errorf("share link %q: %w", link, err)
	}
	return addr, nil
}
