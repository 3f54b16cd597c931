package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	err := NewBundleNotFoundError(12)
	assert.Equal(t, "bundle 12 not found", err.Error())
	assert.True(t, IsNotFound(fmt.Errorf("lookup failed: %w", err)))
	assert.False(t, IsNotFound(errors.New("other")))

	custom := &NotFoundError{ResourceType: "service", ResourceName: "3", Message: "service 3 is gone"}
	assert.Equal(t, "service 3 is gone", custom.Error())
	assert.Equal(t, "activator x not found", NewActivatorNotFoundError("x").Error())
	assert.Equal(t, "service 4 not found", NewServiceNotFoundError(4).Error())
}

func TestIllegalStateError(t *testing.T) {
	err := NewIllegalStateError("start", "bundle org.acme [3]", "UNINSTALLED")
	assert.Equal(t, "cannot start bundle org.acme [3] in state UNINSTALLED", err.Error())
	assert.True(t, IsIllegalState(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsIllegalState(NewBundleNotFoundError(1)))
}
