package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCallback(t *testing.T, payload string) mpesaCallbackRequest {
	t.Helper()
	var req mpesaCallbackRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))
	return req
}

// Test: 名前つきメタデータからの取り出し
func TestToPaymentCallbackSuccess(t *testing.T) {
	req := decodeCallback(t, `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 700},
						{"Name": "MpesaReceiptNumber", "Value": "QFX7K2M9"},
						{"Name": "AccountReference", "Value": "ORD000001"},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`)

	cb := toPaymentCallback(req)
	assert.True(t, cb.Success)
	assert.Equal(t, "ORD000001", cb.AccountReference)
	assert.Equal(t, int64(700), cb.Amount)
	assert.Equal(t, "QFX7K2M9", cb.Receipt)
	// 数値で来る電話番号も文字列へ寄せる
	assert.Equal(t, "254712345678", cb.PayerPhone)
}

// Test: AccountReferenceが名前つきで来ない配送形式は先頭の値を参照とみなす
func TestToPaymentCallbackFallbackReference(t *testing.T) {
	req := decodeCallback(t, `{
		"Body": {
			"stkCallback": {
				"ResultCode": 0,
				"ResultDesc": "ok",
				"CallbackMetadata": {
					"Item": [
						{"Name": "BillRefNumber", "Value": "ORD000042"},
						{"Name": "Amount", "Value": 200}
					]
				}
			}
		}
	}`)

	cb := toPaymentCallback(req)
	assert.Equal(t, "ORD000042", cb.AccountReference)
	assert.Equal(t, int64(200), cb.Amount)
}

// Test: 失敗コールバックはメタデータ無しで来る
func TestToPaymentCallbackFailure(t *testing.T) {
	req := decodeCallback(t, `{
		"Body": {
			"stkCallback": {
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`)

	cb := toPaymentCallback(req)
	assert.False(t, cb.Success)
	assert.Empty(t, cb.AccountReference)
}
