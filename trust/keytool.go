package trust

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/encodeous/dvbench/state"
)

// Keytool generates keys and issues certificates
type Keytool interface {
	// Keygen returns a new key for identity
	Keygen(ctx context.Context, identity, algo string) ([]byte, error)
	// SignCert returns a certificate for key, signed by the key stored at signerKeyPath
	SignCert(ctx context.Context, signerKeyPath string, key []byte) ([]byte, error)
}

// NdndKeytool shells out to `ndnd sec`
type NdndKeytool struct {
	bin string
}

// NewNdndKeytool locates tool on PATH. A missing tool is a precondition failure.
func NewNdndKeytool(tool string) (*NdndKeytool, error) {
	bin, err := exec.LookPath(tool)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH, did you install it?", state.ErrPrecondition, tool)
	}
	return &NdndKeytool{bin: bin}, nil
}

func (k *NdndKeytool) Keygen(ctx context.Context, identity, algo string) ([]byte, error) {
	return k.sec(ctx, nil, "keygen", identity, algo)
}

func (k *NdndKeytool) SignCert(ctx context.Context, signerKeyPath string, key []byte) ([]byte, error) {
	return k.sec(ctx, key, "sign-cert", signerKeyPath)
}

func (k *NdndKeytool) sec(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, k.bin, append([]string{"sec"}, args...)...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("%s sec %s: %w: %s", k.bin, strings.Join(args, " "), err, bytes.TrimSpace(ee.Stderr))
		}
		return nil, fmt.Errorf("%s sec %s: %w", k.bin, strings.Join(args, " "), err)
	}
	return out, nil
}
