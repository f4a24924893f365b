package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hayleygayfer/dumbvm/vm"
)

func TestBootstrapIsANoOp(t *testing.T) {
	assert.NotPanics(t, func() { vm.Bootstrap() })
}

func TestTLBShootdownPanics(t *testing.T) {
	assert.Panics(t, func() { vm.TLBShootdown(0) })
}
