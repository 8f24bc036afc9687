package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	cases := []struct {
		name string
		opts []Option
		want Details
	}{
		{
			name: "plain",
			want: Details{Type: baseTypeURL + "payout/not-found", Title: "Not Found", Status: http.StatusNotFound, Detail: "gone", Instance: "/v1/payouts/x", TraceID: "t-1"},
		},
		{
			name: "for_order",
			opts: []Option{ForOrder("STAKING_REWARD", "reward-1")},
			want: Details{Type: baseTypeURL + "payout/not-found", Title: "Not Found", Status: http.StatusNotFound, Detail: "gone", Instance: "/v1/payouts/x", TraceID: "t-1", Context: "STAKING_REWARD", CorrelationID: "reward-1"},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			rr.Header().Set(TraceHeader, "t-1")
			Write(rr, httptest.NewRequest(http.MethodGet, "/v1/payouts/x", nil), http.StatusNotFound, Type("payout/not-found"), "", "gone", tc.opts...)

			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			var got Details
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWriteOmitsEmptyOrder(t *testing.T) {
	rr := httptest.NewRecorder()
	Write(rr, nil, http.StatusBadRequest, "", "", "bad", ForOrder("", ""))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.Equal(t, "about:blank", raw["type"])
	assert.NotContains(t, raw, "context")
	assert.NotContains(t, raw, "correlation_id")
}

func TestType(t *testing.T) {
	assert.Equal(t, baseTypeURL+"liquidity/not-ready", Type("liquidity/not-ready"))
	assert.Equal(t, "https://example.org/x", Type("https://example.org/x"))
	assert.Equal(t, "about:blank", Type("about:blank"))
	assert.Equal(t, "", Type(""))
}
