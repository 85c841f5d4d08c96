// Command savectl is the client-side tool: it manages the device keypair,
// signs save documents and submits them to a saveguard server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/crypto"
	"github.com/lumen-arcade/saveguard/pkg/progression"
	"github.com/lumen-arcade/saveguard/pkg/save"
	"github.com/lumen-arcade/saveguard/pkg/verify"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}
	switch args[1] {
	case "keygen":
		return runKeygen(args[2:], stdout, stderr)
	case "sign":
		return runSign(args[2:], stdout, stderr)
	case "verify":
		return runVerify(args[2:], stdout, stderr)
	case "submit":
		return runSubmit(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: savectl <keygen|sign|verify|submit> [flags]")
}

// runKeygen creates (or loads) the device keypair and prints the public key.
func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", ".saveguard", "key storage directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, err := crypto.NewFileKeyStore(*dir)
	if err != nil {
		fmt.Fprintln(stderr, "keygen:", err)
		return 1
	}
	kp, err := crypto.LoadOrCreateKeyPair(context.Background(), store)
	if err != nil {
		fmt.Fprintln(stderr, "keygen:", err)
		return 1
	}
	fmt.Fprintln(stdout, kp.PublicKeyExported)
	return 0
}

// runSign reads a save document, binds and signs the envelope, and writes
// the signed document to stdout.
func runSign(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", ".saveguard", "key storage directory")
	device := fs.String("device", "", "device id (required)")
	in := fs.String("in", "-", "save document path, - for stdin")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *device == "" {
		fmt.Fprintln(stderr, "sign: -device is required")
		return 2
	}

	data, err := readDoc(*in)
	if err != nil {
		fmt.Fprintln(stderr, "sign:", err)
		return 1
	}

	store, err := crypto.NewFileKeyStore(*dir)
	if err != nil {
		fmt.Fprintln(stderr, "sign:", err)
		return 1
	}
	kp, err := crypto.LoadOrCreateKeyPair(context.Background(), store)
	if err != nil {
		fmt.Fprintln(stderr, "sign:", err)
		return 1
	}
	var signer crypto.Signer
	if kp != nil {
		s, err := crypto.NewECDSASigner(kp)
		if err != nil {
			fmt.Fprintln(stderr, "sign:", err)
			return 1
		}
		signer = s
	}

	p := save.NewPreparer(*device, signer, progression.NewValidator(progression.DefaultLimits()), baseline.NewMemoryStore())
	payload, result, err := p.Prepare(context.Background(), data)
	if err != nil {
		fmt.Fprintln(stderr, "sign:", err)
		return 1
	}
	for _, issue := range result.Issues {
		fmt.Fprintln(stderr, "warning:", issue)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintln(stderr, "sign:", err)
		return 1
	}
	return 0
}

// runVerify checks a signed document's signature locally.
func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "-", "signed document path, - for stdin")
	format := fs.String("format", string(crypto.FormatP1363), "signature layout: p1363 or asn1")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	doc, err := readDoc(*in)
	if err != nil {
		fmt.Fprintln(stderr, "verify:", err)
		return 1
	}
	if !verify.VerifySignature(doc, crypto.SignatureFormat(*format)) {
		fmt.Fprintln(stdout, "signature: INVALID")
		return 1
	}
	fmt.Fprintln(stdout, "signature: ok")
	return 0
}

// runSubmit posts a signed document to a saveguard server.
func runSubmit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", "http://localhost:8080", "server base URL")
	owner := fs.String("owner", "", "save owner id, <gameId>_<uid> (required)")
	token := fs.String("token", "", "bearer token (required)")
	in := fs.String("in", "-", "signed document path, - for stdin")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *owner == "" || *token == "" {
		fmt.Fprintln(stderr, "submit: -owner and -token are required")
		return 2
	}

	doc, err := readDoc(*in)
	if err != nil {
		fmt.Fprintln(stderr, "submit:", err)
		return 1
	}
	body, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintln(stderr, "submit:", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/saves/%s", *url, *owner), bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(stderr, "submit:", err)
		return 1
	}
	req.Header.Set("Authorization", "Bearer "+*token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(stderr, "submit:", err)
		return 1
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Fprintf(stdout, "%s %s", resp.Status, out)
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

// readDoc decodes a JSON document from a file or stdin, preserving numbers.
func readDoc(path string) (map[string]any, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
