/*
SPDX-FileCopyrightText: 2025 Deutsche Telekom AG

SPDX-License-Identifier: Apache-2.0
*/

package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telekom/exception-subscriptions/pkg/subscription"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "table", want: FormatTable},
		{in: "JSON", want: FormatJSON},
		{in: " yaml ", want: FormatYAML},
		{in: "text", want: FormatText},
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

func TestWriteObject(t *testing.T) {
	rules := []subscription.Rule{{Pattern: "shop.*", Emails: []string{"a@example.com", "b@example.com"}}}

	var buf bytes.Buffer
	require.NoError(t, WriteObject(&buf, FormatJSON, rules))
	var fromJSON []subscription.Rule
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, rules[0].Pattern, fromJSON[0].Pattern)
	assert.Equal(t, rules[0].Emails, fromJSON[0].Emails)

	buf.Reset()
	require.NoError(t, WriteObject(&buf, FormatYAML, rules))
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, "shop.*", fromYAML[0]["pattern"])

	assert.Error(t, WriteObject(&buf, FormatTable, rules))
	assert.Error(t, WriteObject(&buf, Format("xml"), rules))
}
