package views

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/thrivebase/thrivebase/internal/cli/client"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "table", want: FormatTable},
		{in: "JSON", want: FormatJSON},
		{in: " yaml ", want: FormatYAML},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode(t *testing.T) {
	available := decimal.RequireFromString("90")
	accounts := []client.Account{
		{ID: "acc-1", Name: "Checking", BalanceCurrent: decimal.RequireFromString("120.5"), BalanceAvailable: &available},
		{ID: "acc-2", Name: "Card", BalanceCurrent: decimal.RequireFromString("-30")},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, FormatJSON, accounts))

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "120.5", decoded[0]["balance_current"])
		assert.Nil(t, decoded[1]["balance_available"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, FormatYAML, accounts))
		assert.Contains(t, buf.String(), "balance_current: \"120.5\"")

		var decoded []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "Checking", decoded[0]["name"])
		assert.Equal(t, "90", decoded[0]["balance_available"])
		assert.Nil(t, decoded[1]["balance_available"])
	})

	t.Run("table is not encodable", func(t *testing.T) {
		assert.Error(t, Encode(&bytes.Buffer{}, FormatTable, accounts))
	})
}
