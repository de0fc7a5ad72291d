// Package deploy is the well-defined contract side of spec.md §6's
// deploy/call commands: forging the bytes `--forge-deploy`, `--forge-call`,
// `--init-storage`, and `--data` need, and a minimal best-effort HTTP
// client for `--deploy`/`--call`/`--get-storage`/`--inject`. The actual
// node wire protocol (operation binary encoding, branch/counter fetch,
// signature injection format) is out of scope per spec.md §1; this
// package defines the interface a real node client would fill in and
// forges a JSON-RPC-shaped request body rather than Tezos's packed binary
// operation format.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"stackc/internal/diag"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// Forged is the result of a --forge-deploy/--forge-call/--init-storage/
// --data command: a synthetic operation identifier plus the textual and
// (optionally) structured encoding of the literal or script being forged.
type Forged struct {
	OperationID string
	Text        string
	JSON        string
}

// ForgeOrigination forges an origination operation for a compiled
// contract and its initial storage literal.
func ForgeOrigination(p michelson.Program, storage types.Const, compact bool) (Forged, error) {
	c := michelson.ConstConcrete(storage)
	j, err := michelson.EmitConstJSON(c)
	if err != nil {
		return Forged{}, diag.New(diag.External, "", diag.Loc{}, "forge origination: %v", err)
	}
	return Forged{
		OperationID: uuid.NewString(),
		Text:        michelson.EmitText(p) + "\nstorage_value " + michelson.EmitConstText(c) + ";\n",
		JSON:        j,
	}, nil
}

// ForgeCall forges a transaction invoking ENTRY on ADDR with a typed
// parameter literal (spec.md §6's `--forge-call ADDR ENTRY PARAM`).
func ForgeCall(addr, entry string, param types.Const) (Forged, error) {
	c := michelson.ConstConcrete(param)
	j, err := michelson.EmitConstJSON(c)
	if err != nil {
		return Forged{}, diag.New(diag.External, "", diag.Loc{}, "forge call: %v", err)
	}
	return Forged{
		OperationID: uuid.NewString(),
		Text:        fmt.Sprintf("call %s %%%s %s;\n", addr, entry, michelson.EmitConstText(c)),
		JSON:        j,
	}, nil
}

// ForgeData renders a bare typed literal, backing `--data ENTRY PARAM
// [STORAGE]` and `--init-storage`: both just need a parameter/storage
// value forged with no surrounding operation.
func ForgeData(v types.Const) (Forged, error) {
	c := michelson.ConstConcrete(v)
	j, err := michelson.EmitConstJSON(c)
	if err != nil {
		return Forged{}, diag.New(diag.External, "", diag.Loc{}, "forge data: %v", err)
	}
	return Forged{OperationID: uuid.NewString(), Text: michelson.EmitConstText(c), JSON: j}, nil
}

// Client is a minimal JSON-RPC-shaped collaborator for the node-touching
// commands. It is intentionally not a full node SDK: spec.md §1 excludes
// the real Tezos RPC protocol from scope, so every method here sends a
// best-effort request shape and leaves wire-format fidelity to whatever
// real node client eventually replaces it.
type Client struct {
	NodeAddr string
	HTTP     *http.Client
}

// NewClient builds a Client against host:port (the --tezos-node flag).
func NewClient(nodeAddr string) *Client {
	return &Client{NodeAddr: nodeAddr, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// GetStorage fetches the current storage value for an originated
// contract address (--get-storage ADDR).
func (c *Client) GetStorage(ctx context.Context, addr string) (string, error) {
	url := fmt.Sprintf("http://%s/chains/main/blocks/head/context/contracts/%s/storage", c.NodeAddr, addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", diag.New(diag.External, "", diag.Loc{}, "build get-storage request: %v", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", diag.New(diag.External, "", diag.Loc{}, "get-storage: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", diag.New(diag.External, "", diag.Loc{}, "read get-storage response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", diag.New(diag.External, "", diag.Loc{}, "get-storage: node returned %s: %s", resp.Status, body)
	}
	return string(body), nil
}

// Inject submits a forged+signed operation for inclusion (--inject FILE,
// and the tail end of --deploy/--call).
func (c *Client) Inject(ctx context.Context, signedOpHex string) (string, error) {
	url := fmt.Sprintf("http://%s/injection/operation", c.NodeAddr)
	payload, err := json.Marshal(signedOpHex)
	if err != nil {
		return "", diag.New(diag.External, "", diag.Loc{}, "marshal injection payload: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", diag.New(diag.External, "", diag.Loc{}, "build inject request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", diag.New(diag.External, "", diag.Loc{}, "inject: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", diag.New(diag.External, "", diag.Loc{}, "read inject response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", diag.New(diag.External, "", diag.Loc{}, "inject: node returned %s: %s", resp.Status, body)
	}
	var opHash string
	if err := json.Unmarshal(body, &opHash); err != nil {
		return string(body), nil
	}
	return opHash, nil
}
