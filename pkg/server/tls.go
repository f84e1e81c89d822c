package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSOptions mirrors spec §6.5's recognized TLS options.
type TLSOptions struct {
	KeyFile            string
	CertFile           string
	CAFile             string
	Passphrase         string // reserved; encrypted private keys are not decoded here
	RequestCert        bool
	RejectUnauthorized bool // with RequestCert: true requires and verifies a client cert; false (the zero value) only requests one
	MinVersion         uint16 // default tls.VersionTLS12
	MaxVersion         uint16 // default tls.VersionTLS13
	ServerName         string
	ALPNProtocols      []string
}

// buildTLSConfig turns TLSOptions into a *tls.Config, the way the teacher's
// handleTLSConnection wraps a raw net.Conn with tls.Server and a
// *tls.Config carrying certificate material (pkg/core/proxy/tls.go) — here
// adapted to terminate inbound TLS for wire clients rather than to MITM
// an intercepted outbound connection.
func buildTLSConfig(opts TLSOptions) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("server: load TLS key pair: %w", err)
	}

	minVersion := opts.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	maxVersion := opts.MaxVersion
	if maxVersion == 0 {
		maxVersion = tls.VersionTLS13
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		MaxVersion:   maxVersion,
		ServerName:   opts.ServerName,
		NextProtos:   opts.ALPNProtocols,
	}

	if opts.RequestCert {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		if !opts.RejectUnauthorized {
			cfg.ClientAuth = tls.RequestClientCert
		}
		if opts.CAFile != "" {
			pool := x509.NewCertPool()
			pem, err := os.ReadFile(opts.CAFile)
			if err != nil {
				return nil, fmt.Errorf("server: read CA file: %w", err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("server: no certificates parsed from CA file %s", opts.CAFile)
			}
			cfg.ClientCAs = pool
		}
	}

	return cfg, nil
}
