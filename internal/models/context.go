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

package models

import "context"

type originContextKey struct{}

// Origin carries who and what triggered a ledger operation through context,
// so event sinks can attach it as metadata without widening their interfaces.
type Origin struct {
	RequestId string
	ActorId   string
	Source    string // "http", "cli", "sweep", "listener"
}

// WithOrigin attaches origin data to a context.
func WithOrigin(ctx context.Context, o *Origin) context.Context {
	return context.WithValue(ctx, originContextKey{}, o)
}

// GetOrigin retrieves origin data from context, or nil if absent.
func GetOrigin(ctx context.Context) *Origin {
	o, _ := ctx.Value(originContextKey{}).(*Origin)
	return o
}
