package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/exception-subscriptions/pkg/config"
)

func TestBuildSASLMechanism(t *testing.T) {
	tests := []struct {
		mechanism string
		wantName  string
		wantErr   bool
	}{
		{mechanism: "PLAIN", wantName: "PLAIN"},
		{mechanism: "SCRAM-SHA-256", wantName: "SCRAM-SHA-256"},
		{mechanism: "SCRAM-SHA-512", wantName: "SCRAM-SHA-512"},
		{mechanism: "GSSAPI", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.mechanism, func(t *testing.T) {
			m, err := buildSASLMechanism(config.KafkaSASL{Mechanism: tt.mechanism, Username: "u", Password: "p"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, m.Name())
		})
	}
}

func TestBuildTLSConfig(t *testing.T) {
	cfg, err := buildTLSConfig(config.KafkaTLS{Enabled: true, InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Nil(t, cfg.RootCAs)

	_, err = buildTLSConfig(config.KafkaTLS{Enabled: true, CAFile: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("not a cert"), 0o600))
	_, err = buildTLSConfig(config.KafkaTLS{Enabled: true, CAFile: empty})
	assert.Error(t, err)

	_, err = buildTLSConfig(config.KafkaTLS{Enabled: true, CertFile: "missing.crt", KeyFile: "missing.key"})
	assert.Error(t, err)
}

func TestNewDialer(t *testing.T) {
	d, err := newDialer(config.Kafka{
		TLS:  config.KafkaTLS{Enabled: true},
		SASL: config.KafkaSASL{Mechanism: "PLAIN", Username: "u", Password: "p"},
	})
	require.NoError(t, err)
	assert.NotNil(t, d.TLS)
	assert.NotNil(t, d.SASLMechanism)

	d, err = newDialer(config.Kafka{})
	require.NoError(t, err)
	assert.Nil(t, d.TLS)
	assert.Nil(t, d.SASLMechanism)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "cancelled", err: context.Canceled, want: "cancelled"},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "kafka"}, want: "dns"},
		{name: "op error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: "network"},
		{name: "sasl", err: errors.New("SASL handshake failed"), want: "auth"},
		{name: "acl", err: errors.New("topic authorization failed"), want: "authorization"},
		{name: "refused text", err: errors.New("dial tcp: connection refused"), want: "network"},
		{name: "tls", err: errors.New("x509: certificate signed by unknown authority"), want: "tls"},
		{name: "leader", err: errors.New("leader not available"), want: "broker"},
		{name: "other", err: errors.New("something odd"), want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}
