package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/vecflow/apierr"
)

func TestHint(t *testing.T) {
	testCases := []struct {
		description string
		err         error
		expect      HintCategory
	}{
		{description: "typed auth", err: &StageError{Stage: StageSearch, Err: &apierr.Error{Kind: apierr.KindAuthentication, Status: 401}}, expect: HintAuthentication},
		{description: "typed quota", err: &StageError{Stage: StageUpsert, Err: fmt.Errorf("upsert vec1 (1/6): %w", &apierr.Error{Kind: apierr.KindQuota, Status: 429})}, expect: HintQuota},
		{description: "embed stage", err: &StageError{Stage: StageEmbed, Err: errors.New("fallback embedding failed")}, expect: HintInference},
		{description: "connect stage", err: &StageError{Stage: StageConnect, Err: &apierr.Error{Kind: apierr.KindNotFound, Status: 404}}, expect: HintIndex},
		{description: "ready timeout", err: &StageError{Stage: StageWaitReady, Err: &apierr.Error{Kind: apierr.KindTimeout}}, expect: HintIndex},
		{description: "untyped unauthorized", err: errors.New("401 Unauthorized"), expect: HintAuthentication},
		{description: "untyped inference", err: errors.New("inference API not available"), expect: HintInference},
		{description: "untyped index", err: errors.New("index quickstart2 is gone"), expect: HintIndex},
		{description: "untyped limit", err: errors.New("monthly limit reached"), expect: HintQuota},
		{description: "generic", err: errors.New("connection reset"), expect: HintGeneric},
		{description: "nil", err: nil, expect: HintGeneric},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			category, hint := Hint(testCase.err)
			assert.Equal(t, testCase.expect, category)
			assert.NotEmpty(t, hint)
		})
	}
}
