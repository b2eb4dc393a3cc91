// Package quic carries protocol messages over QUIC. Every message travels on
// its own unidirectional stream as a single length-prefixed frame.
package quic

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

// Package constants
const (
	// NextProto is the ALPN protocol negotiated by both sides.
	NextProto = "reefrush-quic"

	// DefaultMaxMessageSize is the default maximum message size in bytes
	DefaultMaxMessageSize = 1024 * 1024 // 1MB

	// DefaultIdleTimeout is the default connection idle timeout
	DefaultIdleTimeout = 30 * time.Second

	// DefaultKeepAlive is the default keep-alive interval
	DefaultKeepAlive = 15 * time.Second

	// DefaultWriteTimeout bounds opening and writing one stream.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultMaxIncomingUniStreams caps streams a peer may have open at once.
	DefaultMaxIncomingUniStreams = 256
)

// Options tune a QUIC connection.
type Options struct {
	WriteTimeout   time.Duration
	MaxMessageSize uint32
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	return o
}

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:        DefaultIdleTimeout,
		KeepAlivePeriod:       DefaultKeepAlive,
		MaxIncomingUniStreams: DefaultMaxIncomingUniStreams,
	}
}

// GenerateSelfSignedTLS generates a self-signed TLS certificate for development
func GenerateSelfSignedTLS() (*tls.Config, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrCertificateInvalid, err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"reefrush"},
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour), // Valid for 1 year
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrCertificateInvalid, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{certDER},
			PrivateKey:  privateKey,
		}},
		NextProtos: []string{NextProto},
		MinVersion: tls.VersionTLS13, // QUIC requires TLS 1.3
	}, nil
}

// ClientTLS is the client side configuration. insecure skips certificate
// verification, which self-signed development servers need.
func ClientTLS(insecure bool) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: insecure, //nolint:gosec
		NextProtos:         []string{NextProto},
		MinVersion:         tls.VersionTLS13,
	}
}
