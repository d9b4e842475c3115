/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Service/keys for the OS keyring.
const (
	keyringService = "Scanstation"
	keyringToken   = "backend_token"
)

// LoadToken returns the backend token from the keychain, or "" when none is stored.
func LoadToken() (string, error) {
	tok, err := keyring.Get(keyringService, keyringToken)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return tok, nil
}

// SaveToken stores the backend token in the keychain.
func SaveToken(token string) error {
	if err := keyring.Set(keyringService, keyringToken, token); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// DeleteToken removes the stored token. Deleting a missing token is not an error.
func DeleteToken() error {
	if err := keyring.Delete(keyringService, keyringToken); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}
