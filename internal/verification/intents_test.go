package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentValidate(t *testing.T) {
	allowed := statusSet(nil)

	cases := []struct {
		name   string
		intent Intent
		field  string // empty means valid
	}{
		{"change status", Intent{Kind: IntentChangeStatus, Status: StatusVerified}, ""},
		{"change status missing status", Intent{Kind: IntentChangeStatus}, "status"},
		{"change status outside allowed set", Intent{Kind: IntentChangeStatus, Status: "archived"}, "status"},
		{"reassign", Intent{Kind: IntentReassign, ReviewerID: uintPtr(7)}, ""},
		{"reassign nil means unassign", Intent{Kind: IntentReassign}, ""},
		{"note", Intent{Kind: IntentNote, Note: "checked documents"}, ""},
		{"note missing text", Intent{Kind: IntentNote}, "note"},
		{"request document", Intent{Kind: IntentRequestDocument, DocumentType: "passport"}, ""},
		{"request document missing type", Intent{Kind: IntentRequestDocument}, "documentType"},
		{"escalate", Intent{Kind: IntentEscalate, Reason: "possible forgery"}, ""},
		{"escalate missing reason", Intent{Kind: IntentEscalate}, "reason"},
		{"unknown kind", Intent{Kind: "teleport"}, "kind"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.intent.Validate(allowed)
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestIntentValidateCustomStatusSet(t *testing.T) {
	allowed := statusSet([]string{"submitted", "archived"})

	assert.NoError(t, Intent{Kind: IntentChangeStatus, Status: "archived"}.Validate(allowed))
	assert.Error(t, Intent{Kind: IntentChangeStatus, Status: StatusVerified}.Validate(allowed))
}
