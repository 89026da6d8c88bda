// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package tls builds listener configurations for the player-facing
// server: operator-provided certificate pairs, or a generated
// self-signed pair for development setups.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// CodeInvalid marks certificate material that cannot be used.
const CodeInvalid = "TLS_INVALID"

// File names of the generated pair under the certificate directory.
const (
	selfSignedCert = "server.crt"
	selfSignedKey  = "server.key"
)

// selfSignedLifetime is how long a generated certificate stays valid.
// EnsureSelfSigned regenerates the pair once it has expired.
const selfSignedLifetime = 365 * 24 * time.Hour

// ServerConfig loads a certificate pair into a TLS config suitable for
// the telnet listener.
func ServerConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, oops.
			Code(CodeInvalid).
			With("cert_file", certFile).
			With("key_file", keyFile).
			Wrapf(err, "loading TLS certificate pair")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// EnsureSelfSigned returns the certificate pair under dir, generating a
// fresh self-signed one when the pair is missing or expired. Meant for
// development; clients have to be told to trust it.
func EnsureSelfSigned(dir string, hosts []string) (certFile, keyFile string, err error) {
	certFile = filepath.Join(dir, selfSignedCert)
	keyFile = filepath.Join(dir, selfSignedKey)

	if usable(certFile, keyFile) {
		return certFile, keyFile, nil
	}

	if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
		return "", "", oops.
			Code(CodeInvalid).
			With("dir", dir).
			Wrapf(mkErr, "creating certificate directory")
	}

	now := time.Now()
	certPEM, keyPEM, err := generate(hosts, now, now.Add(selfSignedLifetime))
	if err != nil {
		return "", "", err
	}
	if err := writePEM(certFile, certPEM); err != nil {
		return "", "", err
	}
	if err := writePEM(keyFile, keyPEM); err != nil {
		return "", "", err
	}
	return certFile, keyFile, nil
}

// usable reports whether the pair exists and the certificate has time
// left on it.
func usable(certFile, keyFile string) bool {
	if _, err := os.Stat(keyFile); err != nil {
		return false
	}
	data, err := os.ReadFile(filepath.Clean(certFile))
	if err != nil {
		return false
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false
	}
	return time.Now().Before(cert.NotAfter)
}

// generate builds a self-signed ECDSA P-256 certificate covering hosts.
// Entries that parse as IP addresses land in the IP SANs, the rest in
// the DNS SANs.
func generate(hosts []string, notBefore, notAfter time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, oops.Code(CodeInvalid).Wrapf(err, "generating server key")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, oops.Code(CodeInvalid).Wrapf(err, "generating serial")
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"NovaMUSH"},
			CommonName:   "novamush",
		},
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
			continue
		}
		template.DNSNames = append(template.DNSNames, h)
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, oops.Code(CodeInvalid).Wrapf(err, "creating certificate")
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, oops.Code(CodeInvalid).Wrapf(err, "marshaling server key")
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// writePEM writes material readable only by the server user.
func writePEM(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.
			Code(CodeInvalid).
			With("path", path).
			Wrapf(err, "writing PEM file")
	}
	return nil
}
