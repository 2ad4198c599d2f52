/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	netmonderrors "github.com/jordigilh/netmond/pkg/shared/errors"
)

// CompressionType tags how a stored value's bytes were compressed.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
)

// loadOrCreateKey loads the AES-256 key from keyPath, generating and persisting a
// fresh one at 0600 permissions if none exists yet.
func loadOrCreateKey(keyPath string) ([]byte, error) {
	data, err := os.ReadFile(keyPath)
	if err == nil && len(data) == 32 {
		return data, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, netmonderrors.FailedTo("generate storage encryption key", err)
	}
	if err := os.WriteFile(keyPath, key, 0o600); err != nil {
		return nil, netmonderrors.FailedTo("persist storage encryption key", err)
	}
	return key, nil
}

// encodePipeline gzips payloads over the compression threshold, then
// encrypts by the family's encryption level. It returns the final bytes
// alongside the compression type and encryption level actually applied, so
// the caller can record them for the matching decode.
type encodePipeline struct {
	threshold int64
	compress  bool
	encrypt   bool
	gcm       cipher.AEAD
}

func newEncodePipeline(cfg *Config, key []byte) (*encodePipeline, error) {
	p := &encodePipeline{threshold: cfg.CompressionThreshold, compress: cfg.EnableCompression, encrypt: cfg.EnableEncryption}
	if !cfg.EnableEncryption {
		return p, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, netmonderrors.FailedTo("initialize storage cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, netmonderrors.FailedTo("initialize storage GCM mode", err)
	}
	p.gcm = gcm
	return p, nil
}

func (p *encodePipeline) encode(raw []byte, level EncryptionLevel) ([]byte, CompressionType, EncryptionLevel, error) {
	payload := raw
	compressionType := CompressionNone

	if p.compress && int64(len(payload)) > p.threshold {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(payload); err != nil {
			return nil, "", "", netmonderrors.FailedTo("compress metric value", err)
		}
		if err := gz.Close(); err != nil {
			return nil, "", "", netmonderrors.FailedTo("finalize metric value compression", err)
		}
		payload = buf.Bytes()
		compressionType = CompressionGzip
	}

	if !p.encrypt || level == EncryptionNone || p.gcm == nil {
		return payload, compressionType, EncryptionNone, nil
	}

	nonce := make([]byte, p.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", "", netmonderrors.FailedTo("generate encryption nonce", err)
	}
	sealed := p.gcm.Seal(nonce, nonce, payload, nil)
	return sealed, compressionType, level, nil
}

func (p *encodePipeline) decode(data []byte, compressionType CompressionType, level EncryptionLevel) ([]byte, error) {
	payload := data

	if level != EncryptionNone {
		if p.gcm == nil {
			return nil, fmt.Errorf("cannot decrypt value at level %s: encryption disabled", level)
		}
		nonceSize := p.gcm.NonceSize()
		if len(payload) < nonceSize {
			return nil, fmt.Errorf("encrypted value shorter than nonce size")
		}
		nonce, ciphertext := payload[:nonceSize], payload[nonceSize:]
		plain, err := p.gcm.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, netmonderrors.FailedTo("decrypt metric value", err)
		}
		payload = plain
	}

	if compressionType == CompressionGzip {
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, netmonderrors.FailedTo("open gzip reader for metric value", err)
		}
		defer gz.Close()
		out, err := io.ReadAll(gz)
		if err != nil {
			return nil, netmonderrors.FailedTo("decompress metric value", err)
		}
		return out, nil
	}

	return payload, nil
}
