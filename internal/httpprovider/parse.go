package httpprovider

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rawblock/kyt-engine/internal/chainconfig"
	"github.com/rawblock/kyt-engine/internal/kyt"
)

// findCaseInsensitive looks up key in m trying the exact case, then the
// lowercase form — the upstream API sometimes echoes hashes in a
// different case than the caller used.
func findCaseInsensitive(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if mm, ok := v.(map[string]any); ok {
			return mm
		}
	}
	if v, ok := m[strings.ToLower(key)]; ok {
		if mm, ok := v.(map[string]any); ok {
			return mm
		}
	}
	return nil
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func asInt64(v any) *int64 {
	if v == nil {
		return nil
	}
	n := int64(asFloat(v))
	return &n
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func math10(exp int) float64 {
	return math.Pow10(exp)
}

func parseTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	s = strings.Replace(s, "Z", "+00:00", 1)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// parseUTXOTx builds a Transaction from a Blockchair-shaped UTXO dashboard
// response, grounded on blockchair.py::_parse_utxo_transaction.
func parseUTXOTx(txID, chain string, raw, txInfo map[string]any) *kyt.Transaction {
	var inputs []kyt.TxInput
	if rawInputs, ok := raw["inputs"].([]any); ok {
		for _, item := range rawInputs {
			in, ok := item.(map[string]any)
			if !ok {
				continue
			}
			inputs = append(inputs, kyt.TxInput{
				Address:         asString(in["recipient"]),
				Value:           asFloat(in["value"]) / 1e8,
				PrevTxID:        asString(in["spending_transaction_hash"]),
				PrevOutputIndex: int(asFloat(in["spending_index"])),
			})
		}
	}

	var outputs []kyt.TxOutput
	if rawOutputs, ok := raw["outputs"].([]any); ok {
		for idx, item := range rawOutputs {
			out, ok := item.(map[string]any)
			if !ok {
				continue
			}
			outputs = append(outputs, kyt.TxOutput{
				Address:     asString(out["recipient"]),
				Value:       asFloat(out["value"]) / 1e8,
				OutputIndex: idx,
			})
		}
	}

	return &kyt.Transaction{
		TxID:        txID,
		Chain:       chain,
		Kind:        chainconfig.UTXO,
		BlockHeight: asInt64(txInfo["block_id"]),
		BlockTime:   parseTime(txInfo["time"]),
		Fee:         asFloat(txInfo["fee"]) / 1e8,
		Size:        asInt64(txInfo["size"]),
		Inputs:      inputs,
		Outputs:     outputs,
		Raw:         raw,
	}
}

// parseAccountTx builds a Transaction from a Blockchair-shaped account
// dashboard response, grounded on blockchair.py::_parse_account_transaction.
func parseAccountTx(txID, chain string, cc chainconfig.Config, raw, txInfo map[string]any) *kyt.Transaction {
	var internals []kyt.InternalTx
	if calls, ok := raw["calls"].([]any); ok {
		for idx, item := range calls {
			call, ok := item.(map[string]any)
			if !ok {
				continue
			}
			callType := asString(call["call_type"])
			if callType == "" {
				callType = "call"
			}
			internals = append(internals, kyt.InternalTx{
				FromAddress: asString(call["sender"]),
				ToAddress:   asString(call["recipient"]),
				Value:       asFloat(call["value"]) / math.Pow10(cc.NativeDecimals),
				CallType:    callType,
				TraceIndex:  idx,
			})
		}
	}

	isContract := asString(txInfo["input_hex"]) != "" && asString(txInfo["input_hex"]) != "0x"

	divisor := math.Pow10(cc.NativeDecimals)
	var gasPrice *float64
	if txInfo["gas_price"] != nil {
		gp := asFloat(txInfo["gas_price"]) / 1e9
		gasPrice = &gp
	}

	return &kyt.Transaction{
		TxID:           txID,
		Chain:          chain,
		Kind:           chainconfig.Account,
		BlockHeight:    asInt64(txInfo["block_id"]),
		BlockTime:      parseTime(txInfo["time"]),
		Fee:            asFloat(txInfo["fee"]) / divisor,
		Sender:         asString(txInfo["sender"]),
		Recipient:      asString(txInfo["recipient"]),
		Value:          asFloat(txInfo["value"]) / divisor,
		GasUsed:        asInt64(txInfo["gas_used"]),
		GasPrice:       gasPrice,
		Nonce:          asInt64(txInfo["nonce"]),
		IsContractCall: isContract,
		Internals:      internals,
		Raw:            raw,
	}
}
