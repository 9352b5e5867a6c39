package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusApply(t *testing.T) {
	tests := []struct {
		from    Status
		action  Action
		want    Status
		wantErr bool
	}{
		{StatusPending, ActionAccept, StatusAccepted, false},
		{StatusPending, ActionReject, StatusRejected, false},
		{StatusPending, ActionWithdraw, StatusWithdrawn, false},
		{StatusAccepted, ActionWithdraw, StatusWithdrawn, false},
		{StatusAccepted, ActionAccept, StatusAccepted, true},
		{StatusAccepted, ActionReject, StatusAccepted, true},
		{StatusRejected, ActionAccept, StatusRejected, true},
		{StatusRejected, ActionWithdraw, StatusRejected, true},
		{StatusWithdrawn, ActionAccept, StatusWithdrawn, true},
		{StatusWithdrawn, ActionWithdraw, StatusWithdrawn, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := tt.from.Apply(tt.action)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusActive(t *testing.T) {
	assert.True(t, StatusPending.Active())
	assert.True(t, StatusAccepted.Active())
	assert.False(t, StatusRejected.Active())
	assert.False(t, StatusWithdrawn.Active())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Accept ")
	require.NoError(t, err)
	assert.Equal(t, ActionAccept, a)

	_, err = ParseAction("promote")
	assert.Error(t, err)
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindRegistrationAccepted, KindForStatus(StatusAccepted))
	assert.Equal(t, KindRegistrationRejected, KindForStatus(StatusRejected))
	assert.Equal(t, KindRegistrationWithdrawn, KindForStatus(StatusWithdrawn))
	assert.Equal(t, KindRegistrationRequest, KindForStatus(StatusPending))
}

func TestProfileCompletenessAndCapacity(t *testing.T) {
	p := Profile{Name: "Ada", Title: "Professor", Department: "CS"}
	assert.False(t, p.IsComplete(), "no content fields")
	p.Description = "Works on compilers."
	assert.True(t, p.IsComplete())

	p.Capacity = 2
	assert.Equal(t, 2, p.Remaining())
	p.AcceptedCount = 2
	assert.True(t, p.IsFull())
	p.AcceptedCount = 3
	assert.Equal(t, 0, p.Remaining())
}

func TestGenerateText(t *testing.T) {
	p := Profile{
		Name:       "Ada",
		Title:      "Professor",
		Department: "CS",
		Topics:     []string{"compilers", "types"},
	}
	assert.Equal(t, "Name: Ada\nTitle: Professor\nDepartment: CS\nResearch interests: compilers, types", p.GenerateText())
}

func TestCloneIsDeep(t *testing.T) {
	p := Profile{Topics: []string{"a"}, Embedding: []float32{1}}
	c := p.Clone()
	c.Topics[0] = "b"
	c.Embedding[0] = 2
	assert.Equal(t, "a", p.Topics[0])
	assert.Equal(t, float32(1), p.Embedding[0])
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 99.39, MatchResult{Score: 0.99394}.Percentage())
	assert.Equal(t, 50.0, MatchResult{Score: 0.5}.Percentage())
}

func TestProfileRequestValidate(t *testing.T) {
	neg := -1
	r := ProfileRequest{Name: "  Ada ", Topics: []string{" x ", "", "y"}}
	require.NoError(t, r.Validate())
	assert.Equal(t, "Ada", r.Name)
	assert.Equal(t, []string{"x", "y"}, r.Topics)

	assert.Error(t, (&ProfileRequest{}).Validate())
	assert.Error(t, (&ProfileRequest{Name: "Ada", Capacity: &neg}).Validate())
}
