package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroup(t *testing.T) {
	tests := []struct {
		in      string
		want    Group
		kind    string
		wantErr bool
	}{
		{in: "*", want: AllGroup, kind: "all"},
		{in: "Question_5", want: QuestionGroup(5), kind: "question"},
		{in: " 12 ", want: UserGroup(12), kind: "user"},
		{in: "Question_0", wantErr: true},
		{in: "Question_abc", wantErr: true},
		{in: "0", wantErr: true},
		{in: "", wantErr: true},
		{in: "admins", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g, err := ParseGroup(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, g)
			assert.Equal(t, tt.kind, g.Kind())
		})
	}
}

func TestGroupUserID(t *testing.T) {
	id, ok := UserGroup(9).UserID()
	assert.True(t, ok)
	assert.Equal(t, uint(9), id)

	_, ok = QuestionGroup(9).UserID()
	assert.False(t, ok)
	_, ok = AllGroup.UserID()
	assert.False(t, ok)
}

func TestGroupChannel(t *testing.T) {
	assert.Equal(t, "broadcast:group:Question_3", GroupChannel(QuestionGroup(3)))
	assert.Equal(t, "broadcast:group:*", GroupChannel(AllGroup))
}
