// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

func TestCodeOf(t *testing.T) {
	err := topiqerr.New(topiqerr.CodeStoreTopicNotFound, "gone")
	assert.Equal(t, topiqerr.CodeStoreTopicNotFound, topiqerr.CodeOf(err))

	assert.Equal(t, topiqerr.Code(""), topiqerr.CodeOf(nil))
	assert.Equal(t, topiqerr.Code(""), topiqerr.CodeOf(stderrors.New("plain")))
}

func TestWrapPreservesChain(t *testing.T) {
	base := stderrors.New("disk full")
	err := topiqerr.Wrap(base, topiqerr.CodeStoreDatabaseFailure, "writing topic",
		topiqerr.FieldTopic("registration"))

	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.True(t, topiqerr.HasCode(err, topiqerr.CodeStoreDatabaseFailure))
	assert.Contains(t, err.Error(), "writing topic")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, topiqerr.Wrap(nil, topiqerr.CodeStoreDatabaseFailure, "noop"))
	assert.NoError(t, topiqerr.Wrapf(nil, topiqerr.CodeStoreDatabaseFailure, "noop"))
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name  string
		code  topiqerr.Code
		check func(error) bool
	}{
		{"not found", topiqerr.CodeStoreTopicNotFound, topiqerr.IsNotFound},
		{"unavailable", topiqerr.CodeStoreVectorUnavailable, topiqerr.IsUnavailable},
		{"invalid input", topiqerr.CodeStoreInvalidInput, topiqerr.IsInvalidInput},
		{"request invalid", topiqerr.CodeServerRequestInvalid, topiqerr.IsInvalidInput},
		{"timeout", topiqerr.CodeResolveArbiterTimeout, topiqerr.IsTimeout},
		{"upstream", topiqerr.CodeProviderUpstreamFailure, topiqerr.IsUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := topiqerr.New(tt.code, "x")
			assert.True(t, tt.check(err))
		})
	}

	t.Run("mismatches stay false", func(t *testing.T) {
		err := topiqerr.New(topiqerr.CodeStoreTopicNotFound, "x")
		assert.False(t, topiqerr.IsTimeout(err))
		assert.False(t, topiqerr.IsUnavailable(err))
	})
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound,
		topiqerr.HTTPStatus(topiqerr.New(topiqerr.CodeStoreTopicNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest,
		topiqerr.HTTPStatus(topiqerr.New(topiqerr.CodeServerRequestInvalid, "x")))
	assert.Equal(t, http.StatusGatewayTimeout,
		topiqerr.HTTPStatus(topiqerr.New(topiqerr.CodeResolveArbiterTimeout, "x")))
	assert.Equal(t, http.StatusBadGateway,
		topiqerr.HTTPStatus(topiqerr.New(topiqerr.CodeProviderUpstreamFailure, "x")))
	assert.Equal(t, http.StatusInternalServerError,
		topiqerr.HTTPStatus(topiqerr.New(topiqerr.CodeCLISetupFailure, "x")))
}
