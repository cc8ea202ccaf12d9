package mail

import (
	"crypto/tls"
	netmail "net/mail"
	"strings"
)

func parseAddress(s string) (string, error) {
	addr, err := netmail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

func tlsConfig(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}
