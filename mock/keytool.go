package mock

import (
	"context"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
)

// Keytool issues fake NDN keys and certificates shaped like the output of `ndnd sec`
type Keytool struct {
	mu sync.Mutex
	// Fail makes every call return this error
	Fail error
	// FailSign makes only SignCert return this error
	FailSign error
	Keygens  []string
	Signs    []string
}

func (k *Keytool) Keygen(ctx context.Context, identity, algo string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.Fail != nil {
		return nil, k.Fail
	}
	k.Keygens = append(k.Keygens, identity)
	return pem.EncodeToMemory(&pem.Block{
		Type: "NDN KEY",
		Headers: map[string]string{
			"Name":    fmt.Sprintf("%s/KEY/%%%02X", identity, len(k.Keygens)),
			"SigType": algo,
		},
		Bytes: []byte(identity),
	}), nil
}

func (k *Keytool) SignCert(ctx context.Context, signerKeyPath string, key []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.Fail != nil {
		return nil, k.Fail
	}
	if k.FailSign != nil {
		return nil, k.FailSign
	}
	blk, _ := pem.Decode(key)
	if blk == nil || blk.Type != "NDN KEY" {
		return nil, errors.New("invalid key")
	}
	k.Signs = append(k.Signs, signerKeyPath)
	return pem.EncodeToMemory(&pem.Block{
		Type: "NDN CERT",
		Headers: map[string]string{
			"Name":     blk.Headers["Name"] + "/NA/v=1",
			"SigType":  blk.Headers["SigType"],
			"Signer":   signerKeyPath,
			"Validity": "2026-01-01 00:00:00 +0000 UTC - 2027-01-01 00:00:00 +0000 UTC",
		},
		Bytes: blk.Bytes,
	}), nil
}
