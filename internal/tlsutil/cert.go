package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	certFileName = "server.crt"
	keyFileName  = "server.key"
)

// CertificateManager handles TLS certificate loading and generation
type CertificateManager struct {
	certFile  string
	keyFile   string
	storePath string
	logger    *zap.Logger
}

// NewCertificateManager creates a new certificate manager. Certificate
// lifecycle events (load vs. generate) are discarded until WithLogger
// attaches a logger.
func NewCertificateManager(certFile, keyFile, storePath string) *CertificateManager {
	return &CertificateManager{
		certFile:  certFile,
		keyFile:   keyFile,
		storePath: storePath,
		logger:    zap.NewNop(),
	}
}

// WithLogger attaches a logger for certificate lifecycle events, returning
// the receiver so molockd can chain it onto construction alongside the
// process-wide logger rule.Engine and the mux listener already use.
func (cm *CertificateManager) WithLogger(logger *zap.Logger) *CertificateManager {
	if logger != nil {
		cm.logger = logger
	}
	return cm
}

// GetCertificate returns a TLS certificate, loading from files or generating if needed
func (cm *CertificateManager) GetCertificate(autoGenerate bool) (*tls.Certificate, error) {
	// Try loading from configured paths first
	if cm.certFile != "" && cm.keyFile != "" {
		cert, err := tls.LoadX509KeyPair(cm.certFile, cm.keyFile)
		if err == nil {
			cm.logger.Info("tlsutil: loaded certificate from configured paths",
				zap.String("cert_file", cm.certFile),
				zap.String("key_file", cm.keyFile),
			)
			return &cert, nil
		}
		// If files are specified but can't be loaded, return error
		return nil, fmt.Errorf("failed to load certificate from %s and %s: %w", cm.certFile, cm.keyFile, err)
	}

	// Try loading from store path
	storeCertPath := filepath.Join(cm.storePath, certFileName)
	storeKeyPath := filepath.Join(cm.storePath, keyFileName)

	cert, err := tls.LoadX509KeyPair(storeCertPath, storeKeyPath)
	if err == nil {
		cm.logger.Info("tlsutil: loaded certificate from store", zap.String("store_path", cm.storePath))
		return &cert, nil
	}

	// If auto-generate is disabled and no cert found, return error
	if !autoGenerate {
		return nil, fmt.Errorf("no TLS certificate found and auto-generation is disabled")
	}

	cm.logger.Info("tlsutil: no certificate found, generating self-signed", zap.String("store_path", cm.storePath))
	return cm.generateAndSaveCertificate()
}

// generateAndSaveCertificate creates a new self-signed certificate and saves it
func (cm *CertificateManager) generateAndSaveCertificate() (*tls.Certificate, error) {
	// Ensure store path exists
	if err := os.MkdirAll(cm.storePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create certificate store directory: %w", err)
	}

	// Generate ECDSA private key
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	// Generate serial number
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	// Create certificate template
	notBefore := time.Now()
	notAfter := notBefore.Add(365 * 24 * time.Hour) // Valid for 1 year

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Molock"},
			CommonName:   "Molock Self-Signed",
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	// Add all local IPs
	localIPs, err := getLocalIPs()
	if err != nil {
		cm.logger.Warn("tlsutil: failed to enumerate local IPs for certificate SAN list", zap.Error(err))
	} else {
		template.IPAddresses = append(template.IPAddresses, localIPs...)
	}

	// Create certificate
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	// Encode certificate to PEM
	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	})

	// Encode private key to PEM
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: keyDER,
	})

	// Save certificate and key files
	certPath := filepath.Join(cm.storePath, certFileName)
	keyPath := filepath.Join(cm.storePath, keyFileName)

	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}

	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to save private key: %w", err)
	}

	// Parse and return the certificate
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}

	cm.logger.Info("tlsutil: generated self-signed certificate",
		zap.String("serial", serialNumber.Text(16)),
		zap.Int("san_ip_count", len(template.IPAddresses)),
		zap.Time("not_after", notAfter),
	)

	return &cert, nil
}

// getLocalIPs returns all non-loopback local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			ips = append(ips, ipnet.IP)
		}
	}

	return ips, nil
}

// GetCertificatePaths returns the paths where certificates are stored
func (cm *CertificateManager) GetCertificatePaths() (certPath, keyPath string) {
	if cm.certFile != "" && cm.keyFile != "" {
		return cm.certFile, cm.keyFile
	}
	return filepath.Join(cm.storePath, certFileName), filepath.Join(cm.storePath, keyFileName)
}
