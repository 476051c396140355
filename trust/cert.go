package trust

import (
	"bufio"
	"bytes"
	"encoding/pem"
	"errors"
	"strings"
)

var ErrNoName = errors.New("certificate has no Name header")

// CertName extracts the canonical name from the Name: header of a PEM encoded certificate
func CertName(cert []byte) (string, error) {
	if blk, _ := pem.Decode(cert); blk != nil {
		if name := strings.TrimSpace(blk.Headers["Name"]); name != "" {
			return name, nil
		}
	}
	sc := bufio.NewScanner(bytes.NewReader(cert))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "Name:"); ok {
			if f := strings.Fields(rest); len(f) > 0 {
				return f[0], nil
			}
		}
	}
	return "", ErrNoName
}
