// Copyright 2025 The ProtonOS Authors.
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

// Package auth implements methods to manage user and group credentials.
package auth

// UID is a user ID.
type UID uint32

// GID is a group ID.
type GID uint32

// RootUID is the user ID of the superuser.
const RootUID = UID(0)

// RootGID is the group ID of the superuser.
const RootGID = GID(0)

// Credentials contains user and group identities of a process.
//
// Credentials are copied on fork and are not shared, so a child changing
// its identity does not affect the parent.
type Credentials struct {
	// RealUID is the user ID that owns the process.
	RealUID UID

	// EffectiveUID is the user ID checked on most accesses.
	EffectiveUID UID

	// SavedUID is the user ID saved across exec of a setuid binary.
	SavedUID UID

	// RealGID, EffectiveGID and SavedGID are the group analogues of the
	// user IDs above.
	RealGID      GID
	EffectiveGID GID
	SavedGID     GID
}

// NewRootCredentials returns credentials for the superuser.
func NewRootCredentials() *Credentials {
	return &Credentials{
		RealUID:      RootUID,
		EffectiveUID: RootUID,
		SavedUID:     RootUID,
		RealGID:      RootGID,
		EffectiveGID: RootGID,
		SavedGID:     RootGID,
	}
}

// NewUserCredentials returns credentials for an ordinary user.
func NewUserCredentials(uid UID, gid GID) *Credentials {
	return &Credentials{
		RealUID:      uid,
		EffectiveUID: uid,
		SavedUID:     uid,
		RealGID:      gid,
		EffectiveGID: gid,
		SavedGID:     gid,
	}
}

// Fork returns an independent copy of the credentials for a new child
// process.
func (c *Credentials) Fork() *Credentials {
	nc := *c
	return &nc
}

// HasCapability returns true if the credentials grant superuser privilege.
func (c *Credentials) HasCapability() bool {
	return c.EffectiveUID == RootUID
}
