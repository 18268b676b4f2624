// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")
var ErrInvalidWorkflow = errors.New("invalid workflow")
var ErrInvalidTransition = errors.New("invalid stage transition")
var ErrExternalCallFailed = errors.New("external call failed")
var ErrSessionOpen = errors.New("authoring session already open")
