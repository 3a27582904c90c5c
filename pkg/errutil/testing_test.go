// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/hermodbot/hermod/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	// Should not fail
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", "123").Errorf("test error")
	// Should not fail
	errutil.AssertErrorContext(t, err, "user_id", "123")
}

func TestAssertNoErrorCode(t *testing.T) {
	errutil.AssertNoErrorCode(t, nil, "MY_CODE")
	errutil.AssertNoErrorCode(t, errors.New("plain"), "MY_CODE")
	errutil.AssertNoErrorCode(t, oops.Code("OTHER").Errorf("test error"), "MY_CODE")
}
