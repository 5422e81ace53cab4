package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"hydroclient/decimal"
	"hydroclient/ledger"
)

type rpcHandler func(params []json.RawMessage) (any, *rpcError)

func newTestServer(t *testing.T, handlers map[string]rpcHandler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected method %q", req.Method)
			http.Error(w, "unexpected method", http.StatusBadRequest)
			return
		}
		result, rpcErr := handler(req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:       server.URL,
		AllowInsecure: true,
		PollInterval:  10 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestProtocolStateDecoding(t *testing.T) {
	server := newTestServer(t, map[string]rpcHandler{
		"hydro_getProtocolState": func(params []json.RawMessage) (any, *rpcError) {
			var tag string
			require.NoError(t, json.Unmarshal(params[0], &tag))
			require.Equal(t, "latest", tag)
			return map[string]any{
				"price":                            "0xde0b6b3a7640000", // 1e18 = 1.0
				"numberOfTroves":                   "0x64",
				"totalCollateral":                  "0x1bc16d674ec80000", // 2.0
				"totalDebt":                        "0xde0b6b3a7640000",
				"redistributedCollateral":          "0x0",
				"redistributedDebt":                "0x0",
				"baseRate":                         "0x2386f26fc10000", // 0.01
				"lastFeeUpdate":                    "0x65f1b800",
				"recoveryMode":                     true,
				"husdInStabilityPool":              "0x0",
				"totalStakedHLQT":                  "0x0",
				"remainingStabilityPoolHLQTReward": "0x0",
			}, nil
		},
	})
	client := newTestClient(t, server)

	state, err := client.ProtocolState(context.Background(), ledger.Latest())
	require.NoError(t, err)
	require.True(t, state.Price.Equal(decimal.One()))
	require.Equal(t, uint64(100), state.NumberOfTroves)
	require.True(t, state.TotalCollateral.Equal(decimal.FromUint64(2)))
	require.True(t, state.BaseRate.Equal(decimal.MustParse("0.01")))
	require.True(t, state.RecoveryMode)
	require.Equal(t, time.Unix(0x65f1b800, 0).UTC(), state.LastFeeUpdate)
}

func TestTrovesValidatesBeforeNetwork(t *testing.T) {
	var calls atomic.Int64
	server := newTestServer(t, map[string]rpcHandler{
		"hydro_getTroves": func(params []json.RawMessage) (any, *rpcError) {
			calls.Add(1)
			return []any{}, nil
		},
	})
	client := newTestClient(t, server)

	_, err := client.Troves(context.Background(), ledger.Latest(), -1, 10, ledger.AscendingCollateralRatio)
	require.ErrorIs(t, err, ledger.ErrNegativeCount)

	_, err = client.Troves(context.Background(), ledger.Latest(), 0, -5, ledger.AscendingCollateralRatio)
	require.ErrorIs(t, err, ledger.ErrNegativeCount)

	_, err = client.Troves(context.Background(), ledger.Latest(), 0, 10, ledger.SortOrder("sideways"))
	require.ErrorIs(t, err, ledger.ErrUnknownSortOrder)

	require.Equal(t, int64(0), calls.Load(), "validation failures must not reach the network")
}

func TestTroveDecoding(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	server := newTestServer(t, map[string]rpcHandler{
		"hydro_getTrove": func(params []json.RawMessage) (any, *rpcError) {
			return map[string]any{
				"owner":              owner,
				"status":             "open",
				"collateral":         "0x8ac7230489e80000", // 10
				"debt":               "0x0",
				"stake":              "0x6f05b59d3b20000", // 0.5
				"snapshotCollateral": "0x0",
				"snapshotDebt":       "0x0",
			}, nil
		},
	})
	client := newTestClient(t, server)

	record, err := client.Trove(context.Background(), ledger.Latest(), owner)
	require.NoError(t, err)
	require.Equal(t, owner, record.Owner)
	require.True(t, record.Collateral.Equal(decimal.FromUint64(10)))
	require.True(t, record.Stake.Equal(decimal.MustParse("0.5")))
}

func TestTroveRejectsUnknownStatus(t *testing.T) {
	server := newTestServer(t, map[string]rpcHandler{
		"hydro_getTrove": func(params []json.RawMessage) (any, *rpcError) {
			return map[string]any{"status": "sideways"}, nil
		},
	})
	client := newTestClient(t, server)

	_, err := client.Trove(context.Background(), ledger.Latest(), common.Address{})
	require.ErrorContains(t, err, "unknown trove status")
}

func TestSubmitAndWaitStaleHint(t *testing.T) {
	hash := common.HexToHash("0xabcdef")
	var polls atomic.Int64
	server := newTestServer(t, map[string]rpcHandler{
		"hydro_submitTx": func(params []json.RawMessage) (any, *rpcError) {
			var submitted submitParams
			require.NoError(t, json.Unmarshal(params[0], &submitted))
			require.Equal(t, string(ledger.TxOpenTrove), submitted.Kind)
			return map[string]any{"hash": hash}, nil
		},
		"hydro_getTransactionReceipt": func(params []json.RawMessage) (any, *rpcError) {
			if polls.Add(1) < 2 {
				return map[string]any{"status": "pending"}, nil
			}
			return map[string]any{
				"status":      "failed",
				"blockNumber": "0x10",
				"errorCode":   codeStaleHint,
				"errorReason": "hints no longer adjacent",
			}, nil
		},
	})
	client := newTestClient(t, server)

	handle, err := client.Submit(context.Background(), ledger.Tx{
		Kind: ledger.TxOpenTrove,
		Params: ledger.OpenTroveParams{
			Collateral: decimal.FromUint64(5),
			BorrowHUSD: decimal.FromUint64(2000),
			MaxFeeRate: decimal.MustParse("0.01"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, hash, handle.Hash())

	receipt, err := handle.WaitForReceipt(context.Background())
	require.NoError(t, err)
	require.Equal(t, ledger.ReceiptFailed, receipt.Status)
	require.ErrorIs(t, receipt.Err, ledger.ErrStaleHint)
	require.GreaterOrEqual(t, polls.Load(), int64(2), "must poll past pending")
}

func TestSubmitRejectsNegativeAmounts(t *testing.T) {
	server := newTestServer(t, nil)
	client := newTestClient(t, server)

	_, err := client.Submit(context.Background(), ledger.Tx{
		Kind: ledger.TxStakeHLQT,
		Params: ledger.StakeParams{
			Amount: decimal.FromInt64(-1),
		},
	})
	require.Error(t, err, "negative amounts cannot be encoded on the wire")
}

func TestSubscribeBlocksDeliversAdvancement(t *testing.T) {
	var height atomic.Int64
	height.Store(5)
	server := newTestServer(t, map[string]rpcHandler{
		"hydro_getBlockHeader": func(params []json.RawMessage) (any, *rpcError) {
			n := height.Add(1) - 1
			return map[string]any{
				"number":    fmt.Sprintf("0x%x", n),
				"timestamp": "0x65f1b800",
				"hash":      common.Hash{},
			}, nil
		},
	})
	client := newTestClient(t, server)

	headers, cancel, err := client.SubscribeBlocks(context.Background())
	require.NoError(t, err)
	defer cancel()

	first := <-headers
	second := <-headers
	require.Greater(t, second.Number, first.Number, "headers must advance")

	cancel()
	cancel() // safe to call repeatedly
}
