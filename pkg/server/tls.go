package server

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

	"github.com/RomainDECOSTER/scoutquest/pkg/config"
	"github.com/RomainDECOSTER/scoutquest/pkg/errors"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// LoadOrGenerateTLS resolves the cert/key pair for cfg: uses the
// configured paths if present, auto-generates a self-signed pair at the
// resolved paths (under cert_dir unless cert_path/key_path are set) when
// auto_generate is set and either file is missing, or fails with a
// config error otherwise.
func LoadOrGenerateTLS(cfg config.TLSConfig) (*tls.Config, error) {
	certPath, keyPath := resolvePaths(cfg)

	if !fileExists(certPath) || !fileExists(keyPath) {
		if !cfg.AutoGenerate {
			return nil, errors.InvalidArgument("tls cert/key missing and auto_generate disabled", nil)
		}
		if err := generateSelfSigned(certPath, keyPath); err != nil {
			return nil, errors.Wrap(err, "failed to generate self-signed certificate")
		}
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   resolveVersion(cfg.MinVersion, tls.VersionTLS12),
		MaxVersion:   resolveVersion(cfg.MaxVersion, tls.VersionTLS13),
	}, nil
}

func resolvePaths(cfg config.TLSConfig) (cert, key string) {
	cert = cfg.CertPath
	if cert == "" {
		cert = filepath.Join(cfg.CertDir, "scoutquest.crt")
	}
	key = cfg.KeyPath
	if key == "" {
		key = filepath.Join(cfg.CertDir, "scoutquest.key")
	}
	return cert, key
}

func resolveVersion(v string, fallback uint16) uint16 {
	switch v {
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return fallback
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// generateSelfSigned writes a one-year self-signed cert/key pair
// covering localhost, 127.0.0.1, and the scoutquest hostnames.
func generateSelfSigned(certPath, keyPath string) error {
	logger.L().Info("generating self-signed certificate", "cert", certPath, "key", keyPath)

	if dir := filepath.Dir(certPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	template := &x509.Certificate{
		SerialNumber: mustSerial(),
		Subject: pkix.Name{
			CommonName:   "ScoutQuest Server",
			Organization: []string{"ScoutQuest"},
			Country:      []string{"US"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost", "scoutquest", "scoutquest-server"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}

	certOut, err := os.Create(certPath)
	if err != nil {
		return err
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return err
	}

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer keyOut.Close()
	return pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
}

func mustSerial() *big.Int {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return big.NewInt(time.Now().UnixNano())
	}
	return n
}
