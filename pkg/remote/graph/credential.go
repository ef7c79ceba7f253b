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
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"gitlab.com/tozd/go/errors"
)

// DefaultScope is the application permission scope for Microsoft Graph
const DefaultScope = "https://graph.microsoft.com/.default"

// 🔐 NewClientSecretCredential returns an app-only credential for a tenant.
// Tokens are cached by the credential and refreshed when they expire.
func NewClientSecretCredential(tenantID, clientID, clientSecret string) (azcore.TokenCredential, error) {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, errors.Errorf("tenant id, client id and client secret are required")
	}
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, errors.Errorf("loading client secret credential: %w", err)
	}
	return cred, nil
}
