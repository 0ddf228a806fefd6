package certgen_test

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/config"
	"github.com/tolelom/purgegame/crypto/certgen"
)

// handshake runs one TLS handshake over loopback TCP and returns the
// server's and client's errors.
func handshake(t *testing.T, srv, cli *tls.Config) (error, error) {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", srv)
	require.NoError(t, err)
	defer ln.Close()

	errc := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			errc <- err
			return
		}
		defer c.Close()
		errc <- c.(*tls.Conn).Handshake()
	}()
	c, cerr := tls.Dial("tcp", ln.Addr().String(), cli)
	serr := <-errc
	if cerr == nil {
		c.Close()
	}
	return serr, cerr
}

func TestGenerateAllMutualTLS(t *testing.T) {
	dir := t.TempDir()
	bundle, err := certgen.GenerateAll(dir, "purge-test", &certgen.Options{
		ExtraIPs: []net.IP{net.ParseIP("10.1.2.3")},
		ExtraDNS: []string{"rpc.example"},
	})
	require.NoError(t, err)

	for _, p := range []string{bundle.CACert, bundle.CAKey, bundle.ServerCert, bundle.ServerKey, bundle.ClientCert, bundle.ClientKey} {
		fi, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Equal(t, os.FileMode(0600), fi.Mode().Perm(), p)
	}
	assert.Equal(t, filepath.Join(dir, "purge-test.crt"), bundle.ServerCert)

	srvCfg, err := config.LoadTLSConfig(config.TLSConfig{
		Cert:     bundle.ServerCert,
		Key:      bundle.ServerKey,
		ClientCA: bundle.CACert,
	})
	require.NoError(t, err)
	require.NotNil(t, srvCfg)

	caPEM, err := os.ReadFile(bundle.CACert)
	require.NoError(t, err)
	roots := x509.NewCertPool()
	require.True(t, roots.AppendCertsFromPEM(caPEM))
	clientPair, err := tls.LoadX509KeyPair(bundle.ClientCert, bundle.ClientKey)
	require.NoError(t, err)

	for _, host := range []string{"localhost", "purge-test", "rpc.example"} {
		serr, cerr := handshake(t, srvCfg, &tls.Config{
			RootCAs:      roots,
			ServerName:   host,
			Certificates: []tls.Certificate{clientPair},
		})
		assert.NoError(t, serr, host)
		assert.NoError(t, cerr, host)
	}

	serr, _ := handshake(t, srvCfg, &tls.Config{RootCAs: roots, ServerName: "localhost"})
	assert.Error(t, serr, "client certificate required")

	serverPair, err := tls.LoadX509KeyPair(bundle.ServerCert, bundle.ServerKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(serverPair.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, leaf.ExtKeyUsage)
	assert.True(t, leaf.IPAddresses[2].Equal(net.ParseIP("10.1.2.3")))
}

func TestGenerateAllOverwrites(t *testing.T) {
	dir := t.TempDir()
	first, err := certgen.GenerateAll(dir, "node", nil)
	require.NoError(t, err)
	a, err := os.ReadFile(first.CACert)
	require.NoError(t, err)

	second, err := certgen.GenerateAll(dir, "node", nil)
	require.NoError(t, err)
	b, err := os.ReadFile(second.CACert)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh CA on every run")
}
