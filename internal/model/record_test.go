package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLLMStatus_CanTransition(t *testing.T) {
	allowed := []struct {
		from, to LLMStatus
	}{
		{LLMNotRequired, LLMPending},
		// A needs_llm record still sitting in not_required is claimable.
		{LLMNotRequired, LLMProcessing},
		{LLMPending, LLMProcessing},
		{LLMPending, LLMNotRequired},
		{LLMProcessing, LLMProcessed},
		{LLMProcessing, LLMError},
		{LLMError, LLMPending},
	}
	for _, tr := range allowed {
		assert.True(t, tr.from.CanTransition(tr.to), "%s -> %s", tr.from, tr.to)
	}

	denied := []struct {
		from, to LLMStatus
	}{
		{LLMNotRequired, LLMProcessed},
		{LLMNotRequired, LLMError},
		{LLMPending, LLMProcessed},
		{LLMPending, LLMError},
		{LLMProcessing, LLMPending},
		{LLMProcessed, LLMPending},
		{LLMProcessed, LLMProcessing},
		{LLMProcessed, LLMError},
		{LLMError, LLMProcessing},
		{LLMError, LLMProcessed},
		{LLMError, LLMNotRequired},
	}
	for _, tr := range denied {
		assert.False(t, tr.from.CanTransition(tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestLLMStatus_Terminal(t *testing.T) {
	assert.True(t, LLMProcessed.Terminal())
	assert.True(t, LLMError.Terminal())
	assert.False(t, LLMNotRequired.Terminal())
	assert.False(t, LLMPending.Terminal())
	assert.False(t, LLMProcessing.Terminal())
}
