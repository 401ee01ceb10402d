package mpesa

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
)

// Encrypter turns an initiator password into the gateway's SecurityCredential
// using the given certificate. Tests substitute a stub.
type Encrypter func(password, certificate []byte) (string, error)

// EncryptCredential encrypts password with the certificate's RSA public key
// (PKCS#1 v1.5) and base64-encodes the ciphertext. The certificate may be PEM
// or raw DER. Parsing errors are returned unwrapped.
func EncryptCredential(password, certificate []byte) (string, error) {
	der := certificate
	if block, _ := pem.Decode(certificate); block != nil {
		der = block.Bytes
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return "", err
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return "", errors.New("mpesa: certificate does not carry an RSA public key")
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, password)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// securityCredential reads the configured certificate and encrypts the
// initiator password. File errors surface as-is.
func (c *Client) securityCredential() (string, error) {
	if c.cfg.InitiatorName == "" {
		return "", validationError(KeyInitiatorName, "initiator name is required for this operation")
	}
	if c.cfg.InitiatorPassword == "" {
		return "", validationError(KeyInitiatorPassword, "initiator password is required for this operation")
	}

	certificate := c.certificate
	if certificate == nil {
		if c.cfg.CertificatePath == "" {
			return "", validationError(KeyCertificatePath, "certificate path is required for this operation")
		}
		data, err := os.ReadFile(c.cfg.CertificatePath)
		if err != nil {
			return "", err
		}
		certificate = data
	}

	return c.encrypt([]byte(c.cfg.InitiatorPassword), certificate)
}
