package connectors

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// TLSMaterial: PEM-материалы для шифрованного транспорта.
type TLSMaterial struct {
	CA         []byte
	Cert       []byte
	Key        []byte
	ServerName string
	Insecure   bool
}

// NewTLSConfig собирает *tls.Config. Без CA используются системные корни,
// сертификат и ключ клиента включают взаимную аутентификацию.
func NewTLSConfig(m TLSMaterial) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         m.ServerName,
		InsecureSkipVerify: m.Insecure,
	}

	if len(m.CA) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(m.CA) {
			return nil, errors.New("riemann: no certificates found in CA bundle")
		}
		cfg.RootCAs = pool
	}

	if len(m.Cert) > 0 || len(m.Key) > 0 {
		pair, err := tls.X509KeyPair(m.Cert, m.Key)
		if err != nil {
			return nil, fmt.Errorf("riemann: load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}
	return cfg, nil
}
