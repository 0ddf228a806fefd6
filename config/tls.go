package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig holds PEM paths for the RPC listener. ClientCA, when set,
// turns on mutual TLS.
type TLSConfig struct {
	Cert     string `json:"cert,omitempty" yaml:"cert,omitempty" env:"CERT"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty" env:"KEY"`
	ClientCA string `json:"client_ca,omitempty" yaml:"client_ca,omitempty" env:"CLIENT_CA"`
}

// Enabled reports whether a certificate is configured.
func (c TLSConfig) Enabled() bool { return c.Cert != "" || c.Key != "" }

// LoadTLSConfig builds a server *tls.Config from the PEM paths in cfg.
// If no certificate is configured it returns (nil, nil), meaning the
// caller should serve plain HTTP.
func LoadTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		if cfg.ClientCA != "" {
			return nil, fmt.Errorf("tls client_ca set without cert/key")
		}
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("load cert/key: %w", err)
	}
	out := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}
	if cfg.ClientCA == "" {
		return out, nil
	}

	caPEM, err := os.ReadFile(cfg.ClientCA)
	if err != nil {
		return nil, fmt.Errorf("read client CA: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("failed to parse client CA certificate")
	}
	out.ClientCAs = caPool
	out.ClientAuth = tls.RequireAndVerifyClientCert
	return out, nil
}
