// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graph

import (
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/walteh/driveingest/pkg/remote"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/time/rate"
)

// 🔑 bearerPolicy stamps every request with a token from the credential.
// Token failures surface as remote.KindUnauthorized.
type bearerPolicy struct {
	cred   azcore.TokenCredential
	scopes []string
}

func (p *bearerPolicy) Do(req *policy.Request) (*http.Response, error) {
	ctx := req.Raw().Context()
	tk, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Errorf("acquiring token: %w", ctx.Err())
		}
		return nil, remote.NewError(remote.KindUnauthorized, "acquire token", "", "", err)
	}
	req.Raw().Header.Set("Authorization", "Bearer "+tk.Token)
	return req.Next()
}

// 🚦 throttlePolicy spaces requests out on the client side
type throttlePolicy struct {
	limiter *rate.Limiter
}

func (p *throttlePolicy) Do(req *policy.Request) (*http.Response, error) {
	if err := p.limiter.Wait(req.Raw().Context()); err != nil {
		return nil, errors.Errorf("waiting for rate limiter: %w", err)
	}
	return req.Next()
}
