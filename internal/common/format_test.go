/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestShortId(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "none"},
		{"abc", "abc"},
		{"12345678", "12345678"},
		{"123456789", "12345678..."},
	}
	for _, tt := range tests {
		if got := ShortId(tt.in); got != tt.want {
			t.Errorf("ShortId(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("1.50"), "USDT"); got != "1.5 USDT" {
		t.Errorf("Expected 1.5 USDT, got %q", got)
	}
	if got := FormatAmount(decimal.NewFromInt(3), ""); got != "3" {
		t.Errorf("Expected 3, got %q", got)
	}
}
