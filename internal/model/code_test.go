package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusIsProblem(t *testing.T) {
	assert.False(t, StatusActive.IsProblem())
	assert.True(t, StatusInactive.IsProblem())
	assert.True(t, StatusUnknown.IsProblem())
	assert.True(t, StatusUnreachable.IsProblem())
}

func TestRunHasProblems(t *testing.T) {
	assert.False(t, Run{Active: 10}.HasProblems())
	assert.True(t, Run{Active: 10, Inactive: 1}.HasProblems())
	assert.True(t, Run{Unknown: 1}.HasProblems())
	assert.True(t, Run{Unreachable: 2}.HasProblems())
}
